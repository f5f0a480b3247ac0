package parser

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aluiziolira/go-scrape-pudl/models"
)

// ErrContentMismatch marks a body that is too short or has the wrong signature.
var ErrContentMismatch = errors.New("content mismatch")

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	oleMagic      = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ContentRule is the post-validation applied to a fetched body.
type ContentRule struct {
	MinBytes int64
	Kind     models.Kind
}

// ValidateContent ensures body clears the size floor and carries the
// signature its kind implies.
func ValidateContent(body []byte, rule ContentRule) error {
	floor := rule.MinBytes
	if floor <= 0 {
		floor = 1
	}
	if int64(len(body)) < floor {
		return fmt.Errorf("%w: body is %d bytes, floor is %d", ErrContentMismatch, len(body), floor)
	}

	switch rule.Kind {
	case models.KindZip, models.KindXLSX:
		if !bytes.HasPrefix(body, zipMagic) && !bytes.HasPrefix(body, zipEmptyMagic) {
			return fmt.Errorf("%w: expected %s archive signature", ErrContentMismatch, rule.Kind)
		}
	case models.KindXLS:
		if !bytes.HasPrefix(body, oleMagic) {
			return fmt.Errorf("%w: expected OLE2 workbook signature", ErrContentMismatch)
		}
	case models.KindCSV:
		if looksLikeHTML(body) {
			return fmt.Errorf("%w: expected csv, got html", ErrContentMismatch)
		}
	}
	return nil
}

// KindFromURL infers the artifact kind from the URL's file extension.
func KindFromURL(rawURL string) models.Kind {
	name := strings.ToLower(models.FilenameFromURL(rawURL))
	switch path.Ext(name) {
	case ".zip":
		return models.KindZip
	case ".xlsx":
		return models.KindXLSX
	case ".xls":
		return models.KindXLS
	case ".csv":
		return models.KindCSV
	default:
		return models.KindUnknown
	}
}

func looksLikeHTML(body []byte) bool {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}
