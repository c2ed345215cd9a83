package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoAttachment is returned when a PDF carries no attachment of the
// requested name
var ErrNoAttachment = errors.New("attachment not found")

var configOnce sync.Once

func pdfConfig() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Attach embeds data into pdf as a file attachment called name
func Attach(pdf []byte, name string, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "zatca-attach-*")
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", name, err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("attach %s: %w", name, err)
	}

	var out bytes.Buffer
	if err := api.AddAttachments(bytes.NewReader(pdf), &out, []string{path}, false, pdfConfig()); err != nil {
		return nil, fmt.Errorf("attach %s: %w", name, err)
	}
	return out.Bytes(), nil
}

// Extract returns the content of the attachment called name
func Extract(pdf []byte, name string) ([]byte, error) {
	attachments, err := api.ExtractAttachmentsRaw(bytes.NewReader(pdf), "", []string{name}, pdfConfig())
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	for _, a := range attachments {
		if a.FileName != name || a.Reader == nil {
			continue
		}
		data, err := io.ReadAll(a.Reader)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("extract %s: %w", name, ErrNoAttachment)
}

// Attachment is a file embedded in a PDF
type Attachment struct {
	Name string
	Data []byte
}

// Attachments returns every file embedded in pdf. A PDF without an
// embedded files tree yields an empty list.
func Attachments(pdf []byte) ([]Attachment, error) {
	raw, err := api.ExtractAttachmentsRaw(bytes.NewReader(pdf), "", nil, pdfConfig())
	if err != nil {
		if strings.Contains(err.Error(), "no attachments") {
			return nil, nil
		}
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	out := make([]Attachment, 0, len(raw))
	for _, a := range raw {
		if a.Reader == nil {
			continue
		}
		data, err := io.ReadAll(a.Reader)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", a.FileName, err)
		}
		out = append(out, Attachment{Name: a.FileName, Data: data})
	}
	return out, nil
}
