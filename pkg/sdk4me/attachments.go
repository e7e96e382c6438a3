package sdk4me

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// AttachmentsSuffix marks the fields of a write payload that hold files to
// upload.
const AttachmentsSuffix = "_attachments"

// inlineMarker matches ![alt](N) where N indexes the attachment list.
var inlineMarker = regexp.MustCompile(`!\[([^\]]*)\]\((\d+)\)`)

// Attachment is an uploaded file as the API expects it in an
// "*_attachments" field.
type Attachment struct {
	Key      string `json:"key"`
	Filesize int64  `json:"filesize"`
	Inline   bool   `json:"inline,omitempty"`
}

// namedReader is an open file handle such as *os.File or afero.File.
type namedReader interface {
	io.Reader
	Name() string
}

// uploadAttachments replaces the file lists in data by the uploaded
// Attachments. The storage descriptor is fetched once for all fields.
func (c *Client) uploadAttachments(ctx context.Context, path string, data Data) error {
	fields := attachmentFields(data)
	if len(fields) == 0 {
		return nil
	}

	storage, err := c.fetchStorage(ctx, path)
	if err != nil {
		c.logger.ErrorContext(ctx, err.Error())
		return err
	}

	for _, field := range fields {
		if err := c.uploadField(ctx, storage, data, field); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) uploadField(ctx context.Context, storage *StorageDescriptor, data Data, field string) error {
	items := listItems(data[field])

	var (
		uploaded []Attachment
		errs     *multierror.Error
	)
	positions := map[int]int{}
	for i, item := range items {
		if existing, ok := item.(Attachment); ok {
			positions[i] = len(uploaded)
			uploaded = append(uploaded, existing)
			continue
		}

		attachment, err := c.uploadAttachment(ctx, storage, item)
		if err != nil {
			uploadErr := &UploadFailedError{Message: "Attachment upload failed: " + err.Error(), Err: err}
			if c.cfg.RaiseAttachmentErrors {
				c.logger.ErrorContext(ctx, uploadErr.Error(), "field", field)
				return uploadErr
			}
			errs = multierror.Append(errs, uploadErr)
			continue
		}
		positions[i] = len(uploaded)
		uploaded = append(uploaded, attachment)
	}
	if err := errs.ErrorOrNil(); err != nil {
		c.logger.ErrorContext(ctx, "Attachments left out", "field", field, "error", err)
	}

	rewriteInline(data, strings.TrimSuffix(field, AttachmentsSuffix), uploaded, positions)

	if len(uploaded) == 0 {
		delete(data, field)
		return nil
	}
	data[field] = uploaded
	return nil
}

func (c *Client) uploadAttachment(ctx context.Context, storage *StorageDescriptor, item any) (Attachment, error) {
	filename, content, err := c.readFile(item)
	if err != nil {
		return Attachment{}, err
	}
	key, err := c.uploadFile(ctx, storage, filename, content)
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{Key: key, Filesize: int64(len(content))}, nil
}

// readFile loads a path from the client filesystem or drains an open handle.
func (c *Client) readFile(item any) (string, []byte, error) {
	switch f := item.(type) {
	case string:
		exists, err := afero.Exists(c.fs, f)
		if err != nil {
			return "", nil, err
		}
		if !exists {
			return "", nil, fmt.Errorf("file does not exist: %s", f)
		}
		content, err := afero.ReadFile(c.fs, f)
		if err != nil {
			return "", nil, err
		}
		return filepath.Base(f), content, nil
	case namedReader:
		content, err := io.ReadAll(f)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read %s: %w", f.Name(), err)
		}
		return filepath.Base(f.Name()), content, nil
	default:
		return "", nil, fmt.Errorf("unsupported attachment %T", item)
	}
}

// attachmentFields returns, sorted, the fields holding a non-empty file list.
func attachmentFields(data Data) []string {
	var fields []string
	for key, value := range data {
		if strings.HasSuffix(key, AttachmentsSuffix) && len(listItems(value)) > 0 {
			fields = append(fields, key)
		}
	}
	sort.Strings(fields)
	return fields
}

func listItems(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items
	case []Attachment:
		// already uploaded
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items
}

// rewriteInline points ![alt](N) markers in the text field at the uploaded
// keys and flags those attachments inline. Markers of failed uploads are
// left untouched.
func rewriteInline(data Data, textField string, uploaded []Attachment, positions map[int]int) {
	content, ok := data[textField].(string)
	if !ok || content == "" {
		return
	}
	data[textField] = inlineMarker.ReplaceAllStringFunc(content, func(marker string) string {
		m := inlineMarker.FindStringSubmatch(marker)
		index, err := strconv.Atoi(m[2])
		if err != nil {
			return marker
		}
		pos, ok := positions[index]
		if !ok {
			return marker
		}
		uploaded[pos].Inline = true
		return fmt.Sprintf("![%s](%s)", m[1], uploaded[pos].Key)
	})
}
