package sdk4me

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Storage providers announced by the API.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
	providerAWS   = "aws"
)

const (
	filenameTemplate = "${filename}"
	defaultMediaType = "application/octet-stream"
)

var (
	numericPathEnd = regexp.MustCompile(`\d+$`)
	versionedURI   = regexp.MustCompile(`/v[\d.]+(/|$)`)
	s3ErrorPattern = regexp.MustCompile(`(?s)<Error>.*<Message>(.*?)</Message>.*</Error>`)
)

// StorageDescriptor tells where and how attachments of one record are
// uploaded. Fields holds the provider-supplied form fields posted along with
// the file. SuccessURL, when set, is confirmed with 4me after an S3 upload.
type StorageDescriptor struct {
	Provider   string         `mapstructure:"provider"`
	UploadURI  string         `mapstructure:"upload_uri"`
	UploadPath string         `mapstructure:"upload_path"`
	SuccessURL string         `mapstructure:"success_url"`
	Fields     map[string]any `mapstructure:",remain"`
}

// KeyTemplate is the storage key with the file name left as a placeholder.
func (s *StorageDescriptor) KeyTemplate() string {
	return s.UploadPath + filenameTemplate
}

// Key is the storage key of a file with the given base name.
func (s *StorageDescriptor) Key(filename string) string {
	return strings.ReplaceAll(s.KeyTemplate(), filenameTemplate, filename)
}

// formFields returns the provider fields in a stable order.
func (s *StorageDescriptor) formFields() []formField {
	names := make([]string, 0, len(s.Fields))
	for name, value := range s.Fields {
		if value == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]formField, 0, len(names))
	for _, name := range names {
		fields = append(fields, formField{name: name, value: text(s.Fields[name])})
	}
	return fields
}

// storagePath is the record path the upload token is requested for: the
// record itself when it exists, its "new" form otherwise.
func storagePath(path string) string {
	path = strings.TrimSuffix(strings.SplitN(path, "?", 2)[0], "/")
	if numericPathEnd.MatchString(path) || strings.HasSuffix(path, "/new") {
		return path
	}
	return path + "/new"
}

// fetchStorage asks the API where attachments for path may be stored.
func (c *Client) fetchStorage(ctx context.Context, path string) (*StorageDescriptor, error) {
	resp := c.Get(ctx, storagePath(path), Params{P("attachment_upload_token", true)}, nil)
	if !resp.Valid() {
		return nil, &UploadFailedError{Message: fmt.Sprintf("Attachments not allowed for %s: %s", path, resp.Message())}
	}
	raw, ok := resp.Get("storage_upload").(map[string]any)
	if !ok {
		return nil, &UploadFailedError{Message: fmt.Sprintf("Attachments not allowed for %s", path)}
	}

	var storage StorageDescriptor
	if err := mapstructure.Decode(raw, &storage); err != nil {
		return nil, &UploadFailedError{Message: fmt.Sprintf("Attachments not allowed for %s", path), Err: err}
	}
	switch strings.ToLower(storage.Provider) {
	case ProviderLocal:
		storage.Provider = ProviderLocal
	case ProviderS3, providerAWS:
		storage.Provider = ProviderS3
	default:
		return nil, &UploadFailedError{Message: fmt.Sprintf("Attachments not allowed for %s: unknown storage provider %q", path, storage.Provider)}
	}
	if storage.UploadURI == "" {
		return nil, &UploadFailedError{Message: fmt.Sprintf("Attachments not allowed for %s: missing upload_uri", path)}
	}
	return &storage, nil
}

// uploadFile posts a single file to the storage provider and returns its key.
func (c *Client) uploadFile(ctx context.Context, storage *StorageDescriptor, filename string, content []byte) (string, error) {
	key := storage.Key(filename)
	template := storage.KeyTemplate()

	mediaType := mime.TypeByExtension(filepath.Ext(filename))
	if mediaType == "" {
		mediaType = defaultMediaType
	}
	fields := []formField{{name: "Content-Type", value: mediaType}}
	fields = append(fields, storage.formFields()...)
	fields = append(fields, formField{name: "key", value: template})

	body, contentType, err := buildMultipart(fields, &formFile{field: "file", filename: filename, content: content})
	if err != nil {
		return "", err
	}

	switch storage.Provider {
	case ProviderS3:
		return key, c.uploadToS3(ctx, storage, key, body, contentType)
	default:
		return key, c.uploadToLocal(ctx, storage, key, body, contentType)
	}
}

// uploadToS3 posts to a presigned URI. No API credentials are sent. S3
// answers 201 or, for success_action_redirect policies, a 303 redirect; an
// XML error document fails the upload whatever the status.
func (c *Client) uploadToS3(ctx context.Context, storage *StorageDescriptor, key string, body []byte, contentType string) error {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set("User-Agent", c.expandHeader(nil).Get("User-Agent"))

	resp := c.transport.Send(ctx, &Request{Method: http.MethodPost, URL: storage.UploadURI, Header: header, Body: body})
	if m := s3ErrorPattern.FindSubmatch(resp.Body); m != nil {
		return fmt.Errorf("S3 upload to %s for %s failed: %s", storage.UploadURI, key, m[1])
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("S3 upload to %s for %s failed: %s", storage.UploadURI, key, resp.Message())
	}
	if storage.SuccessURL == "" {
		return nil
	}
	return c.confirmUpload(ctx, storage.SuccessURL, key)
}

// confirmUpload tells 4me that key was stored in S3. The request goes to the
// last segment of successURL on the API host, signed with the client's own
// credentials.
func (c *Client) confirmUpload(ctx context.Context, successURL, key string) error {
	endpoint := successURL[strings.LastIndex(successURL, "/")+1:]
	resp := c.Get(ctx, endpoint, Params{P("key", key)}, nil)
	if !resp.Valid() {
		return fmt.Errorf("4me confirmation %s for %s failed: %s", endpoint, key, resp.Message())
	}
	return nil
}

// uploadToLocal posts to the 4me attachment store with the client's own
// credentials.
func (c *Client) uploadToLocal(ctx context.Context, storage *StorageDescriptor, key string, body []byte, contentType string) error {
	uri := storage.UploadURI
	if !versionedURI.MatchString(uri) {
		uri = strings.Replace(uri, "/attachments", "/"+c.cfg.APIVersion+"/attachments", 1)
	}
	header := c.expandHeader(http.Header{"Content-Type": {contentType}})

	resp := c.transport.Send(ctx, &Request{Method: http.MethodPost, URL: uri, Header: header, Body: body})
	if !resp.Valid() {
		return fmt.Errorf("4me upload to %s for %s failed: %s", storage.UploadURI, key, resp.Message())
	}
	return nil
}
