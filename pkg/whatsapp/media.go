package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sunshineplan/imgconv"
)

var ErrMediaFetch = errors.New("media fetch failed")

// MediaFile is an attachment resolved to bytes.
type MediaFile struct {
	Data     []byte
	MimeType string
	FileName string
}

// FetchMedia resolves a media source: an http(s) URL, a data URI, or a local
// file path (optionally prefixed with file://). Bodies above maxBytes are
// rejected.
func FetchMedia(ctx context.Context, client *http.Client, source string, maxBytes int) (*MediaFile, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return nil, fmt.Errorf("%w: empty source", ErrMediaFetch)
	case strings.HasPrefix(source, "data:"):
		return decodeDataURI(source, maxBytes)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return fetchHTTP(ctx, client, source, maxBytes)
	default:
		return readFile(strings.TrimPrefix(source, "file://"), maxBytes)
	}
}

func fetchHTTP(ctx context.Context, client *http.Client, source string, maxBytes int) (*MediaFile, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaFetch, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrMediaFetch, source, resp.StatusCode)
	}
	if maxBytes > 0 && resp.ContentLength > int64(maxBytes) {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrMediaFetch, source, maxBytes)
	}

	data, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMediaFetch, source, err)
	}

	file := &MediaFile{Data: data, MimeType: mediaType(resp.Header.Get("Content-Type"), data)}
	if u, err := url.Parse(source); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			file.FileName = base
		}
	}
	return file, nil
}

func decodeDataURI(source string, maxBytes int) (*MediaFile, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(source, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data uri", ErrMediaFetch)
	}
	params := strings.Split(header, ";")
	isBase64 := false
	for _, p := range params[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: data uri: %v", ErrMediaFetch, err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: data uri: %v", ErrMediaFetch, err)
		}
		data = []byte(unescaped)
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fmt.Errorf("%w: data uri is larger than %d bytes", ErrMediaFetch, maxBytes)
	}
	return &MediaFile{Data: data, MimeType: mediaType(params[0], data)}, nil
}

func readFile(name string, maxBytes int) (*MediaFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaFetch, err)
	}
	defer f.Close()

	data, err := readLimited(f, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMediaFetch, name, err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	return &MediaFile{Data: data, MimeType: mediaType(mimeType, data), FileName: filepath.Base(name)}, nil
}

func readLimited(r io.Reader, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBytes {
		return nil, fmt.Errorf("larger than %d bytes", maxBytes)
	}
	return data, nil
}

func mediaType(declared string, data []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

// preparedImage is an image ready for upload with its JPEG preview.
type preparedImage struct {
	Data      []byte
	MimeType  string
	Thumbnail []byte
}

func prepareImage(data []byte, mimeType string, convertWebP bool, compress bool) (*preparedImage, error) {
	if mimeType == "image/webp" && convertWebP {
		decoded, err := imgconv.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode webp image: %w", err)
		}
		buf := new(bytes.Buffer)
		if err := imgconv.Write(buf, decoded, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
			return nil, fmt.Errorf("convert webp image: %w", err)
		}
		data = buf.Bytes()
		mimeType = "image/png"
	}

	decoded, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if compress && decoded.Bounds().Dx() > 1024 {
		buf := new(bytes.Buffer)
		if err := imgconv.Write(buf, imgconv.Resize(decoded, &imgconv.ResizeOption{Width: 1024}), &imgconv.FormatOption{Format: imgconv.JPEG}); err != nil {
			return nil, fmt.Errorf("compress image: %w", err)
		}
		data = buf.Bytes()
		mimeType = "image/jpeg"
	}

	thumb := new(bytes.Buffer)
	if err := imgconv.Write(thumb, imgconv.Resize(decoded, &imgconv.ResizeOption{Width: 72}), &imgconv.FormatOption{Format: imgconv.JPEG}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	return &preparedImage{Data: data, MimeType: mimeType, Thumbnail: thumb.Bytes()}, nil
}
