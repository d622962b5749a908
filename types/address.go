package types

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Scheme tags how the bytes behind a FileAddress can be reached.
type Scheme string

const (
	// SchemeDirect addresses are readable local filesystem paths.
	SchemeDirect Scheme = "direct"
	// SchemeIndirect addresses must be streamed from a content provider.
	SchemeIndirect Scheme = "indirect"
)

// FileAddress is an opaque reference to a file's bytes.
type FileAddress struct {
	Scheme Scheme `msgpack:"scheme" json:"scheme"`
	Raw    string `msgpack:"raw" json:"raw"`
}

// Direct returns a Direct address for a local path.
func Direct(path string) FileAddress {
	return FileAddress{Scheme: SchemeDirect, Raw: path}
}

// Indirect returns an Indirect address for a provider URI.
func Indirect(uri string) FileAddress {
	return FileAddress{Scheme: SchemeIndirect, Raw: uri}
}

// ParseAddress classifies a URI string as handed over by the shell.
//
// file:// URIs and bare absolute paths are Direct, with Raw set to the decoded
// path. Everything else (content://, s3://, https://, ...) is Indirect and
// keeps the URI verbatim.
func ParseAddress(uri string) FileAddress {
	if filepath.IsAbs(uri) {
		return Direct(uri)
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return Indirect(uri)
	}
	if strings.EqualFold(u.Scheme, "file") && u.Path != "" {
		return Direct(u.Path)
	}
	return Indirect(uri)
}

// String returns the raw address.
func (a FileAddress) String() string {
	return a.Raw
}
