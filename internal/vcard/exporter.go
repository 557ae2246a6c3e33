package vcard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/idcard/backend/internal/models"
)

var (
	ErrPhotoTooLarge    = errors.New("avatar exceeds size limit")
	ErrUnsupportedPhoto = errors.New("avatar is not a supported image type")
	ErrBlockedAddress   = errors.New("avatar host resolves to a non-public address")
)

const uploadsPrefix = "/uploads/"

// PhotoFetcher downloads an avatar image.
type PhotoFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Photo, error)
}

// UploadReader reads an image previously stored under /uploads/.
type UploadReader interface {
	ReadUpload(ctx context.Context, filename string) ([]byte, error)
}

// HTTPPhotoFetcher fetches avatars with a plain GET.
type HTTPPhotoFetcher struct {
	HTTPClient *http.Client
	MaxBytes   int64
}

// NewHTTPPhotoFetcher returns a fetcher whose connections, redirects
// included, may only reach public addresses.
func NewHTTPPhotoFetcher(timeout time.Duration, maxBytes int64) *HTTPPhotoFetcher {
	dialer := &net.Dialer{Timeout: timeout, Control: publicOnly}
	return &HTTPPhotoFetcher{
		HTTPClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: timeout,
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		MaxBytes: maxBytes,
	}
}

var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// publicOnly runs after name resolution, so address is always an IP.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		sharedAddressSpace.Contains(ip))
}

func (f *HTTPPhotoFetcher) Fetch(ctx context.Context, rawURL string) (*Photo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("avatar fetch: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("avatar fetch: read body: %w", err)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, ErrPhotoTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	typ := photoType(contentType)
	if typ == "" {
		return nil, ErrUnsupportedPhoto
	}

	return &Photo{Data: data, Type: typ}, nil
}

func photoType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return "JPEG"
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	case "image/webp":
		return "WEBP"
	default:
		return ""
	}
}

// Exporter builds vCards and embeds the owner's avatar when it can be fetched.
type Exporter struct {
	fetcher PhotoFetcher
	uploads UploadReader
	baseURL *url.URL
	logger  *zap.Logger
}

// NewExporter returns an Exporter. Avatars under /uploads/, relative or on
// publicBaseURL's host, are read through uploads and never fetched over
// HTTP. Either fetcher or uploads may be nil, which disables that source.
func NewExporter(fetcher PhotoFetcher, uploads UploadReader, publicBaseURL string, logger *zap.Logger) (*Exporter, error) {
	base, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("vcard: invalid public base url: %w", err)
	}
	return &Exporter{fetcher: fetcher, uploads: uploads, baseURL: base, logger: logger}, nil
}

// Export renders the vCard. A failed avatar fetch only drops the PHOTO field.
func (e *Exporter) Export(ctx context.Context, card models.Card, user models.PublicUser) []byte {
	return Build(card, user, e.photo(ctx, user.Avatar))
}

func (e *Exporter) photo(ctx context.Context, avatar string) *Photo {
	if avatar == "" {
		return nil
	}

	ref, err := url.Parse(avatar)
	if err != nil {
		e.logger.Warn("vCard avatar url invalid", zap.String("avatar", avatar), zap.Error(err))
		return nil
	}
	target := e.baseURL.ResolveReference(ref)
	if !ref.IsAbs() || strings.EqualFold(target.Host, e.baseURL.Host) {
		return e.uploadedPhoto(ctx, target.Path)
	}
	if e.fetcher == nil {
		return nil
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		e.logger.Warn("vCard avatar url not http", zap.String("avatar", avatar))
		return nil
	}

	p, err := e.fetcher.Fetch(ctx, target.String())
	if err != nil {
		e.logger.Warn("vCard avatar fetch failed, omitting photo",
			zap.String("avatar", target.String()),
			zap.Error(err),
		)
		return nil
	}
	return p
}

func (e *Exporter) uploadedPhoto(ctx context.Context, urlPath string) *Photo {
	if e.uploads == nil || !strings.HasPrefix(urlPath, uploadsPrefix) {
		return nil
	}
	name := path.Base(urlPath)
	data, err := e.uploads.ReadUpload(ctx, name)
	if err != nil {
		e.logger.Warn("vCard avatar upload unreadable, omitting photo", zap.String("filename", name), zap.Error(err))
		return nil
	}
	typ := photoType(http.DetectContentType(data))
	if typ == "" {
		e.logger.Warn("vCard avatar upload not an image", zap.String("filename", name))
		return nil
	}
	return &Photo{Data: data, Type: typ}
}
