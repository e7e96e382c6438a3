package sdk4me

import (
	"bytes"
	"fmt"
	"mime/multipart"
)

type formField struct {
	name  string
	value string
}

// formFile is file content held in memory together with its base name.
type formFile struct {
	field    string
	filename string
	content  []byte
}

// buildMultipart encodes fields in order, followed by the file. Storage
// providers require the file to be the last part.
func buildMultipart(fields []formField, file *formFile) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, f := range fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f.name, err)
		}
	}

	if file != nil {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file %s: %w", file.filename, err)
		}
		if _, err := part.Write(file.content); err != nil {
			return nil, "", fmt.Errorf("failed to write file content %s: %w", file.filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}
