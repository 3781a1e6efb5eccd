package runner

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/mensylisir/xmrun/common"
)

// lookupEncoding resolves an encoding label such as "utf-8", "latin1" or
// "shift_jis". The empty label means UTF-8.
func lookupEncoding(label string) (encoding.Encoding, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, common.DefaultEncoding) {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown encoding %q", label)
	}
	return enc, nil
}
