package upload

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/core"
)

var (
	ErrTooLarge        = errors.New("file is too large")
	ErrUnsupportedType = errors.New("only images and PDF files are accepted")
)

// sniffLen is what http.DetectContentType looks at.
const sniffLen = 512

var mimeExtensions = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
}

// Store keeps uploaded deposit slips on local disk.
type Store struct {
	dir          string
	maxBytes     int64
	publicPrefix string
	nowFunc      func() time.Time
}

func NewStore(conf core.UploadConfig) (*Store, error) {
	if err := os.MkdirAll(conf.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	prefix := conf.PublicPrefix
	if prefix == "" {
		prefix = "/uploads/"
	}
	return &Store{
		dir:          conf.Dir,
		maxBytes:     conf.MaxBytes,
		publicPrefix: prefix,
		nowFunc:      time.Now,
	}, nil
}

func (s *Store) MaxBytes() int64 { return s.maxBytes }

func (s *Store) Dir() string { return s.dir }

// PublicPrefix is the URL path the stored files are served under.
func (s *Store) PublicPrefix() string { return s.publicPrefix }

// Save stores the content of r under a unique name and returns its public URL.
// The extension follows the sniffed content type; client file names are never used.
func (s *Store) Save(r io.Reader) (string, error) {
	var buf bytes.Buffer
	reader := r
	if s.maxBytes > 0 {
		reader = io.LimitReader(r, s.maxBytes+1)
	}
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", errors.Wrap(err, "reading upload")
	}
	if s.maxBytes > 0 && int64(buf.Len()) > s.maxBytes {
		return "", ErrTooLarge
	}

	head := buf.Bytes()
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	mimeType := http.DetectContentType(head)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	ext, ok := mimeExtensions[mimeType]
	if !ok {
		return "", ErrUnsupportedType
	}
	name := fmt.Sprintf("%d-%s%s", s.nowFunc().UnixMilli(), uuid.New().String(), ext)

	if err := os.WriteFile(filepath.Join(s.dir, name), buf.Bytes(), 0o644); err != nil {
		// the directory is only created on start
		if errors.Is(err, fs.ErrNotExist) {
			return "", core.NewShutdownError(fmt.Sprintf("upload dir %s is missing", s.dir))
		}
		return "", errors.Wrap(err, "writing upload")
	}
	return path.Join(s.publicPrefix, name), nil
}
