// Package evidence converts uploaded report attachments into inline
// base64 data URIs bounded by size and MIME allow-list constraints.
package evidence

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/safevoice-app/safevoice-api/pkg/errors"
)

// DefaultAllowedMIMEs is the upload allow-list applied when none is configured.
var DefaultAllowedMIMEs = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"audio/mpeg",
	"audio/wav",
	"audio/mp4",
}

// File is a single uploaded attachment before encoding.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Item is an encoded attachment ready to be stored inline on a report.
type Item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Payload   string `json:"payload"`
	SizeBytes int64  `json:"size_bytes"`
}

// Encoder validates and encodes attachment batches.
type Encoder struct {
	maxFiles     int
	maxFileBytes int64
	allowed      map[string]struct{}
}

// NewEncoder builds an encoder with the given ceilings. Zero values fall
// back to 5 files of 5 MiB each and the default MIME allow-list.
func NewEncoder(maxFiles int, maxFileBytes int64, allowedMIMEs []string) *Encoder {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	if maxFileBytes <= 0 {
		maxFileBytes = 5 * 1024 * 1024
	}
	if len(allowedMIMEs) == 0 {
		allowedMIMEs = DefaultAllowedMIMEs
	}
	allowed := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &Encoder{maxFiles: maxFiles, maxFileBytes: maxFileBytes, allowed: allowed}
}

// MaxFiles exposes the configured batch ceiling.
func (e *Encoder) MaxFiles() int {
	return e.maxFiles
}

// EncodeBatch validates the whole batch before encoding anything, so a
// single bad file rejects the submission instead of storing a partial set.
func (e *Encoder) EncodeBatch(files []File) ([]Item, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > e.maxFiles {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge,
			fmt.Sprintf("at most %d evidence files are allowed per submission", e.maxFiles))
	}

	for _, f := range files {
		mime := normalizeMIME(f.MIME)
		if _, ok := e.allowed[mime]; !ok {
			return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia,
				fmt.Sprintf("file %q has unsupported type %q", f.Name, f.MIME))
		}
		// the declared type is caller-controlled; reject when sniffing
		// conclusively identifies content outside the allow-list
		sniffed := normalizeMIME(http.DetectContentType(f.Data))
		if sniffed != "application/octet-stream" && !e.sniffAllowed(sniffed) {
			return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia,
				fmt.Sprintf("file %q content does not match an allowed type", f.Name))
		}
		if int64(len(f.Data)) > e.maxFileBytes {
			return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge,
				fmt.Sprintf("file %q exceeds the %d byte limit", f.Name, e.maxFileBytes))
		}
	}

	items := make([]Item, 0, len(files))
	for _, f := range files {
		mime := normalizeMIME(f.MIME)
		items = append(items, Item{
			ID:        uuid.NewString(),
			Name:      f.Name,
			Kind:      kindFor(mime),
			Payload:   fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(f.Data)),
			SizeBytes: int64(len(f.Data)),
		})
	}
	return items, nil
}

// Decode extracts the original bytes from a stored data URI payload.
func Decode(payload string) (mime string, data []byte, err error) {
	if !strings.HasPrefix(payload, "data:") {
		return "", nil, fmt.Errorf("payload is not a data URI")
	}
	rest := strings.TrimPrefix(payload, "data:")
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", nil, fmt.Errorf("payload is not base64 encoded")
	}
	mime = rest[:sep]
	data, err = base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return "", nil, fmt.Errorf("decode payload: %w", err)
	}
	return mime, data, nil
}

// sniffAliases maps DetectContentType names onto the allow-list names for
// the same content: RIFF WAVE sniffs as audio/wave, and the mp4 container
// sniffs as video/mp4 whether it holds audio or video tracks.
var sniffAliases = map[string]string{
	"audio/wave": "audio/wav",
	"video/mp4":  "audio/mp4",
}

func (e *Encoder) sniffAllowed(mime string) bool {
	if _, ok := e.allowed[mime]; ok {
		return true
	}
	if alias, ok := sniffAliases[mime]; ok {
		_, ok = e.allowed[alias]
		return ok
	}
	return false
}

func normalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	// strip parameters such as "; charset=binary"
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}

func kindFor(mime string) string {
	if strings.HasPrefix(mime, "image/") {
		return "image"
	}
	return "audio"
}
