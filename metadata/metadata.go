// Package metadata extracts descriptive fields from resources stored in the
// Java deployment cache: JAR manifests, JNLP descriptors, images and PDFs.
package metadata

import (
	"archive/zip"
	"bufio"
	"encoding/xml"
	"io"
	"maps"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rwcarlsen/goexif/exif"
)

// MIME types handled here that content sniffing does not report.
const (
	MimeJAR  = "application/java-archive"
	MimeJNLP = "application/x-java-jnlp-file"
	mimeZip  = "application/zip"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

func ExtractMetadata(path string, mimeType string, maxBytes int64) map[string]interface{} {
	metadata := make(map[string]interface{})

	switch mimeType {
	case "image/jpeg", "image/png", "image/tiff":
		maps.Copy(metadata, extractImageMetadata(path, maxBytes))
	case "application/pdf":
		maps.Copy(metadata, extractPDFMetadata(path, maxBytes))
	case MimeJAR, mimeZip, mimeDOCX:
		maps.Copy(metadata, extractArchiveMetadata(path, maxBytes))
	case MimeJNLP:
		maps.Copy(metadata, extractJNLPMetadata(path, maxBytes))
	}

	return metadata
}

// extractImageMetadata extracts a subset of EXIF tags from images.
func extractImageMetadata(path string, maxBytes int64) map[string]interface{} {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var reader io.Reader = f
	if maxBytes > 0 {
		reader = io.LimitReader(f, maxBytes)
	}
	x, err := exif.Decode(reader)
	if err != nil {
		return nil
	}

	meta := make(map[string]interface{})
	if tm, err := x.DateTime(); err == nil {
		meta["datetime"] = tm.Format(time.RFC3339)
	}
	if makeTag, err := x.Get(exif.Make); err == nil {
		meta["make"] = makeTag.String()
	}
	if modelTag, err := x.Get(exif.Model); err == nil {
		meta["model"] = modelTag.String()
	}
	return meta
}

// extractPDFMetadata reads standard PDF document information.
func extractPDFMetadata(path string, maxBytes int64) map[string]interface{} {
	if maxBytes > 0 {
		info, err := os.Stat(path)
		if err != nil || info.Size() > maxBytes {
			return nil
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	info, err := api.PDFInfo(f, path, nil, false, nil)
	if err != nil {
		return nil
	}

	meta := make(map[string]interface{})
	if info.Title != "" {
		meta["title"] = info.Title
	}
	if info.Author != "" {
		meta["author"] = info.Author
	}
	if info.Creator != "" {
		meta["creator"] = info.Creator
	}
	if info.Producer != "" {
		meta["producer"] = info.Producer
	}
	return meta
}

// manifestKeys are the main-section attributes reported for JARs.
var manifestKeys = []string{
	"Manifest-Version",
	"Created-By",
	"Main-Class",
	"Application-Name",
	"Implementation-Title",
	"Implementation-Vendor",
	"Implementation-Version",
	"Permissions",
	"Codebase",
	"Caller-Allowable-Codebase",
	"Trusted-Library",
	"Trusted-Only",
}

// extractArchiveMetadata reads the JAR manifest, signature files and, for
// office documents, the core properties.
func extractArchiveMetadata(filePath string, maxBytes int64) map[string]interface{} {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return nil
	}
	defer r.Close()

	meta := make(map[string]interface{})
	meta["entries"] = len(r.File)
	var signatures []string
	for _, f := range r.File {
		name := strings.ToUpper(f.Name)
		switch {
		case name == "META-INF/MANIFEST.MF":
			if attrs := readManifest(f, maxBytes); len(attrs) > 0 {
				meta["manifest"] = attrs
			}
		case strings.HasPrefix(name, "META-INF/") && isSignatureFile(name):
			signatures = append(signatures, path.Base(f.Name))
		case f.Name == "docProps/core.xml":
			maps.Copy(meta, readCoreProperties(f, maxBytes))
		}
	}
	if len(signatures) > 0 {
		meta["signed"] = true
		meta["signature_files"] = signatures
	}
	return meta
}

func isSignatureFile(name string) bool {
	switch path.Ext(name) {
	case ".SF", ".RSA", ".DSA", ".EC":
		return true
	}
	return false
}

func openEntry(f *zip.File, maxBytes int64) (io.ReadCloser, io.Reader, bool) {
	if maxBytes > 0 && f.UncompressedSize64 > uint64(maxBytes) {
		return nil, nil, false
	}
	rc, err := f.Open()
	if err != nil {
		return nil, nil, false
	}
	var reader io.Reader = rc
	if maxBytes > 0 {
		reader = io.LimitReader(rc, maxBytes)
	}
	return rc, reader, true
}

func readManifest(f *zip.File, maxBytes int64) map[string]string {
	rc, reader, ok := openEntry(f, maxBytes)
	if !ok {
		return nil
	}
	defer rc.Close()

	all := parseManifest(reader)
	attrs := make(map[string]string)
	for _, key := range manifestKeys {
		if v, ok := all[strings.ToLower(key)]; ok && v != "" {
			attrs[key] = v
		}
	}
	return attrs
}

// parseManifest returns the main section attributes keyed by lowercased
// name. Lines starting with a space continue the previous value.
func parseManifest(r io.Reader) map[string]string {
	attrs := make(map[string]string)
	var last string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, " ") {
			if last != "" {
				attrs[last] += line[1:]
			}
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		last = strings.ToLower(strings.TrimSpace(key))
		attrs[last] = strings.TrimSpace(value)
	}
	return attrs
}

func readCoreProperties(f *zip.File, maxBytes int64) map[string]interface{} {
	rc, reader, ok := openEntry(f, maxBytes)
	if !ok {
		return nil
	}
	defer rc.Close()

	type coreProperties struct {
		Title       string `xml:"title"`
		Subject     string `xml:"subject"`
		Creator     string `xml:"creator"`
		Keywords    string `xml:"keywords"`
		Description string `xml:"description"`
	}

	var props coreProperties
	if err := xml.NewDecoder(reader).Decode(&props); err != nil {
		return nil
	}

	meta := make(map[string]interface{})
	if props.Title != "" {
		meta["title"] = props.Title
	}
	if props.Subject != "" {
		meta["subject"] = props.Subject
	}
	if props.Creator != "" {
		meta["creator"] = props.Creator
	}
	if props.Keywords != "" {
		meta["keywords"] = props.Keywords
	}
	if props.Description != "" {
		meta["description"] = props.Description
	}
	return meta
}

type jnlpDescriptor struct {
	Codebase    string `xml:"codebase,attr"`
	Href        string `xml:"href,attr"`
	Information struct {
		Title  string `xml:"title"`
		Vendor string `xml:"vendor"`
	} `xml:"information"`
	Jars []struct {
		Href string `xml:"href,attr"`
	} `xml:"resources>jar"`
	Application struct {
		MainClass string `xml:"main-class,attr"`
	} `xml:"application-desc"`
	Applet struct {
		MainClass string `xml:"main-class,attr"`
	} `xml:"applet-desc"`
}

// extractJNLPMetadata reads the launch descriptor of a Web Start application.
func extractJNLPMetadata(path string, maxBytes int64) map[string]interface{} {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var reader io.Reader = f
	if maxBytes > 0 {
		reader = io.LimitReader(f, maxBytes)
	}
	var desc jnlpDescriptor
	if err := xml.NewDecoder(reader).Decode(&desc); err != nil {
		return nil
	}

	meta := make(map[string]interface{})
	setIf := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			meta[key] = value
		}
	}
	setIf("codebase", desc.Codebase)
	setIf("href", desc.Href)
	setIf("title", desc.Information.Title)
	setIf("vendor", desc.Information.Vendor)
	setIf("main_class", desc.Application.MainClass)
	if desc.Application.MainClass == "" {
		setIf("main_class", desc.Applet.MainClass)
	}
	if len(desc.Jars) > 0 {
		jars := make([]string, 0, len(desc.Jars))
		for _, j := range desc.Jars {
			jars = append(jars, j.Href)
		}
		meta["jars"] = jars
	}
	return meta
}
