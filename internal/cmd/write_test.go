package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPostTypedFields(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/v1/requests", jsonResponse(201, `{"id": 70453, "subject": "Printer jammed"}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{
			"post", "requests",
			"-F", "subject=Printer jammed",
			"-F", "requested_by_id=6",
			"-F", "urgent=true",
			"-F", "desired_completion_at=2024-02-01",
			"-f", "category=123",
			"-o", "json",
		})
		if err != nil {
			t.Fatalf("post failed: %v", err)
		}
	})

	var body map[string]any
	if err := json.Unmarshal(handler.last().Body, &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	want := map[string]any{
		"subject":               "Printer jammed",
		"requested_by_id":       "6",
		"urgent":                true,
		"desired_completion_at": "2024-02-01",
		"category":              "123",
	}
	for key, value := range want {
		if body[key] != value {
			t.Errorf("body[%q] = %#v, want %#v", key, body[key], value)
		}
	}

	var got map[string]any
	decodeJSON(t, output, &got)
	if got["id"] != float64(70453) {
		t.Errorf("output = %v", got)
	}
}

func TestPatchDataAndFields(t *testing.T) {
	handler := newRouteHandler().
		On("PATCH", "/v1/people/6", jsonResponse(200, `{"id": 6}`))
	setupTestEnv(t, handler)

	_ = captureStdout(t, func() {
		err := Execute(context.Background(), []string{
			"patch", "people/6",
			"-d", `{"name": "Howard Tanner", "job_title": "Engineer"}`,
			"-f", "job_title=Manager",
		})
		if err != nil {
			t.Fatalf("patch failed: %v", err)
		}
	})

	var body map[string]any
	if err := json.Unmarshal(handler.last().Body, &body); err != nil {
		t.Fatal(err)
	}
	if body["name"] != "Howard Tanner" || body["job_title"] != "Manager" {
		t.Errorf("body = %v", body)
	}
}

func TestPutInputFile(t *testing.T) {
	handler := newRouteHandler().On("PUT", "/v1/sites/3", jsonResponse(200, ``))
	setupTestEnv(t, handler)

	path := filepath.Join(t.TempDir(), "site.json")
	if err := os.WriteFile(path, []byte(`{"name": "Widget HQ"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"put", "sites/3", "-i", path}); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	})
	if output != "Replaced sites/3\n" {
		t.Errorf("output = %q", output)
	}
	if got := string(handler.last().Body); got != `{"name":"Widget HQ"}` {
		t.Errorf("body = %s", got)
	}
}

func TestWriteRejectsDataAndInput(t *testing.T) {
	setupTestEnv(t, newRouteHandler())
	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"post", "requests", "-d", "{}", "-i", "body.json"})
	})
	if err == nil || ExitCode(err) != exitGeneric {
		t.Errorf("err = %v, exit code = %d", err, ExitCode(err))
	}
}

func TestWriteInvalidField(t *testing.T) {
	setupTestEnv(t, newRouteHandler())
	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"post", "requests", "-F", "subject"})
	})
	if err == nil || !strings.Contains(err.Error(), "expected key=value") {
		t.Fatalf("err = %v", err)
	}
	if ExitCode(err) != exitUsage {
		t.Errorf("exit code = %d", ExitCode(err))
	}
}

func TestPostValidationError(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/v1/requests", jsonResponse(422, `{"message": "Validation failed: Subject can't be blank"}`))
	setupTestEnv(t, handler)

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"post", "requests", "-F", "category=incident"})
	})
	if ExitCode(err) != exitUsage {
		t.Errorf("exit code = %d, want %d", ExitCode(err), exitUsage)
	}
	if !strings.Contains(stderr, "Subject can't be blank") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestPatchWithInlineAttachment(t *testing.T) {
	const uploadPath = "attachments/5/requests/000/070/453/abc/"
	host := new(string)
	var uploaded string
	handler := newRouteHandler().
		On("GET", "/v1/requests/70453", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("attachment_upload_token") != "true" {
				jsonResponse(400, `{"message": "missing token"}`)(w, r)
				return
			}
			jsonResponse(200, fmt.Sprintf(`{"id": 70453, "storage_upload": {"provider": "local", "upload_uri": "%s/attachments", "upload_path": "%s", "x-4me-signature": "sig"}}`, *host, uploadPath))(w, r)
		}).
		On("POST", "/v1/attachments", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				uploaded = r.FormValue("key")
			}
			jsonResponse(200, `{}`)(w, r)
		}).
		On("PATCH", "/v1/requests/70453", jsonResponse(200, `{"id": 70453}`))
	server := setupTestEnv(t, handler)
	*host = server.URL

	screenshot := filepath.Join(t.TempDir(), "screen.png")
	if err := os.WriteFile(screenshot, []byte("png-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	_ = captureStderr(t, func() {
		_ = captureStdout(t, func() {
			err := Execute(context.Background(), []string{
				"patch", "requests/70453",
				"-f", "note=See ![screenshot](0)",
				"-a", "note=" + screenshot,
			})
			if err != nil {
				t.Fatalf("patch failed: %v", err)
			}
		})
	})

	if uploaded != uploadPath+"${filename}" {
		t.Errorf("uploaded key template = %q", uploaded)
	}

	var body struct {
		Note            string `json:"note"`
		NoteAttachments []struct {
			Key      string `json:"key"`
			Filesize int64  `json:"filesize"`
			Inline   bool   `json:"inline"`
		} `json:"note_attachments"`
	}
	if err := json.Unmarshal(handler.last().Body, &body); err != nil {
		t.Fatal(err)
	}
	if body.Note != "See ![screenshot]("+uploadPath+"screen.png)" {
		t.Errorf("note = %q", body.Note)
	}
	if len(body.NoteAttachments) != 1 || !body.NoteAttachments[0].Inline || body.NoteAttachments[0].Filesize != 9 {
		t.Errorf("attachments = %+v", body.NoteAttachments)
	}
}

func TestPostMissingAttachmentRaises(t *testing.T) {
	host := new(string)
	handler := newRouteHandler().
		On("GET", "/v1/requests/new", func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(200, fmt.Sprintf(`{"storage_upload": {"provider": "local", "upload_uri": "%s/attachments", "upload_path": "x/"}}`, *host))(w, r)
		}).
		On("POST", "/v1/requests", jsonResponse(201, `{"id": 1}`))
	server := setupTestEnv(t, handler)
	*host = server.URL

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{
			"post", "requests", "-F", "subject=Broken",
			"-a", "note=/does/not/exist.png",
			"--raise-attachment-errors",
		})
	})
	if err == nil || !strings.Contains(err.Error(), "file does not exist") {
		t.Fatalf("err = %v", err)
	}
	if handler.last().Method == "POST" && handler.last().Path == "/v1/requests" {
		t.Error("the record must not be written when an attachment fails")
	}
}
