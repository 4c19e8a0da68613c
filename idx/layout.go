package idx

import "time"

// layout decodes the version specific part of a record, starting right after
// the busy, incomplete and version fields.
type layout interface {
	decode(r *reader, rec *Record) error
}

var layouts = map[int32]layout{
	Version602: legacyLayout{},
	Version603: signedLayout{reservedBytes: 2},
	Version604: signedLayout{reservedBytes: 2},
	Version605: signedLayout{trailingProxied: true},
}

func layoutFor(version int32) (layout, bool) {
	l, ok := layouts[version]
	return l, ok
}

// legacyLayout is cache version 602: resource strings and headers inline.
type legacyLayout struct{}

func (legacyLayout) decode(r *reader, rec *Record) error {
	err := r.readFields(
		reservedField(2),
		boolField("shortcut_image", &rec.ShortcutImage),
		int32Field("content_length", &rec.ContentLength),
		timeField("last_modified", &rec.LastModified),
		timeField("expiration", &rec.Expiration),
		stringField("version", &rec.Version),
		stringField("url", &rec.URL),
		stringField("namespace_id", &rec.NamespaceID),
	)
	if err != nil {
		return err
	}
	return decodeLegacyHeaders(r, rec)
}

// signedLayout covers 603 and 604 (two reserved bytes) and 605 (no reserved
// bytes, trailing proxied flag).
type signedLayout struct {
	reservedBytes   int
	trailingProxied bool
}

func (l signedLayout) decode(r *reader, rec *Record) error {
	s := &Signing{}
	fields := make([]field, 0, 26)
	if l.reservedBytes > 0 {
		fields = append(fields, reservedField(l.reservedBytes))
	}
	fields = append(fields,
		boolField("shortcut_image", &rec.ShortcutImage),
		int32Field("content_length", &rec.ContentLength),
		timeField("last_modified", &rec.LastModified),
		timeField("expiration", &rec.Expiration),
		timeField("validation", &rec.Validation),
		boolField("known_to_be_signed", &s.KnownToBeSigned),
		int32Field("section2_length", &s.Section2Length),
		int32Field("section3_length", &s.Section3Length),
		int32Field("section4_length", &s.Section4Length),
		int32Field("section5_length", &s.Section5Length),
		timeField("blacklist_validation", &s.BlacklistValidation),
		timeField("cert_expiration", &s.CertExpiration),
		boolField("class_verification", &s.ClassVerification),
		int32Field("reduced_manifest_length", &s.ReducedManifestLength),
		int32Field("pre15_length", &s.Pre15Length),
		boolField("has_only_signed_entries", &s.HasOnlySignedEntries),
		boolField("has_single_code_source", &s.HasSingleCodeSource),
		int32Field("certs_length", &s.CertsLength),
		int32Field("signers_length", &s.SignersLength),
		boolField("has_missing_signed_entries", &s.HasMissingSignedEntries),
		timeField("trusted_libraries_validation", &s.TrustedLibrariesValidation),
		int32Field("reduced_manifest2_length", &s.ReducedManifest2Length),
	)
	if l.trailingProxied {
		fields = append(fields, boolField("is_proxied", &s.IsProxied))
	}
	if err := r.readFields(fields...); err != nil {
		return err
	}
	rec.Signing = s

	if s.Section2Length > 0 {
		return decodeSecondarySection(r, rec)
	}
	return nil
}

// decodeSecondarySection reads section 2, which always starts at
// SecondarySectionOffset.
func decodeSecondarySection(r *reader, rec *Record) error {
	r.field, r.fieldOff = "section2", r.off
	if err := r.seek(SecondarySectionOffset); err != nil {
		return err
	}
	err := r.readFields(
		stringField("version", &rec.Version),
		stringField("url", &rec.URL),
		stringField("namespace_id", &rec.NamespaceID),
		stringField("codebase_ip", &rec.CodebaseIP),
	)
	if err != nil {
		return err
	}
	return decodeStandardHeaders(r, rec)
}

type field struct {
	name string
	read func(r *reader) error
}

func (r *reader) readFields(fields ...field) error {
	for _, f := range fields {
		r.field, r.fieldOff = f.name, r.off
		if err := f.read(r); err != nil {
			return err
		}
	}
	return nil
}

func reservedField(n int) field {
	return field{name: "reserved", read: func(r *reader) error {
		return r.skip(n)
	}}
}

func boolField(name string, dst *bool) field {
	return field{name: name, read: func(r *reader) (err error) {
		*dst, err = r.readBool()
		return err
	}}
}

func int32Field(name string, dst *int32) field {
	return field{name: name, read: func(r *reader) (err error) {
		*dst, err = r.readInt32()
		return err
	}}
}

func timeField(name string, dst *time.Time) field {
	return field{name: name, read: func(r *reader) (err error) {
		*dst, err = r.readTimestamp()
		return err
	}}
}

func stringField(name string, dst *string) field {
	return field{name: name, read: func(r *reader) (err error) {
		*dst, err = r.readPrefixedString()
		return err
	}}
}
