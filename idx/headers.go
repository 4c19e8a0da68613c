package idx

const (
	// codebaseIPHeader is the pseudo header 602 files use for the codebase IP.
	codebaseIPHeader = "deploy_resource_codebase_ip"
	// nullHeaderName is stored in place of the status line's missing name.
	nullHeaderName = "<null>"

	maxHeaderPrealloc = 64
)

// decodeLegacyHeaders reads the inline 602 header list. The codebase IP
// pseudo header is moved to rec.CodebaseIP and left out of rec.Headers.
func decodeLegacyHeaders(r *reader, rec *Record) error {
	count, err := readHeaderCount(r)
	if err != nil {
		return err
	}
	if count > 0 {
		rec.Headers = make([]Header, 0, min(count, maxHeaderPrealloc))
	}
	for i := int32(0); i < count; i++ {
		name, value, err := readHeaderPair(r)
		if err != nil {
			return err
		}
		if name == codebaseIPHeader {
			rec.CodebaseIP = value
			continue
		}
		rec.Headers = append(rec.Headers, Header{Name: name, Value: value})
	}
	return nil
}

// decodeStandardHeaders reads the section 2 header list. Every pair is kept;
// the "<null>" name becomes empty.
func decodeStandardHeaders(r *reader, rec *Record) error {
	count, err := readHeaderCount(r)
	if err != nil {
		return err
	}
	if count > 0 {
		rec.Headers = make([]Header, 0, min(count, maxHeaderPrealloc))
	}
	for i := int32(0); i < count; i++ {
		name, value, err := readHeaderPair(r)
		if err != nil {
			return err
		}
		if name == nullHeaderName {
			name = ""
		}
		rec.Headers = append(rec.Headers, Header{Name: name, Value: value})
	}
	return nil
}

func readHeaderCount(r *reader) (int32, error) {
	r.field, r.fieldOff = "header_count", r.off
	return r.readInt32()
}

func readHeaderPair(r *reader) (string, string, error) {
	r.field, r.fieldOff = "header_name", r.off
	name, err := r.readPrefixedString()
	if err != nil {
		return "", "", err
	}
	r.field, r.fieldOff = "header_value", r.off
	value, err := r.readPrefixedString()
	if err != nil {
		return "", "", err
	}
	return name, value, nil
}
