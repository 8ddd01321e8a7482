package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lvillar/tplmerge"
	"github.com/lvillar/tplmerge/internal/app"
	"github.com/lvillar/tplmerge/internal/pdftest"
)

// roundTrip sends one request and returns the response along with the
// notifications written before it.
func roundTrip(t *testing.T, s *Server, method string, params any) (response, []notification) {
	t.Helper()

	req := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = params
	}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}

	var output bytes.Buffer
	s.input = bytes.NewReader(append(reqBytes, '\n'))
	s.output = &output
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var resp response
	var notes []notification
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			t.Fatalf("unmarshaling %q: %v", line, err)
		}
		if _, ok := probe["id"]; !ok {
			var n notification
			if err := json.Unmarshal([]byte(line), &n); err != nil {
				t.Fatalf("unmarshaling notification %q: %v", line, err)
			}
			notes = append(notes, n)
			continue
		}
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("unmarshaling response %q: %v", line, err)
		}
	}
	return resp, notes
}

// result decodes a successful response into v.
func result(t *testing.T, resp response, v any) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decoding %s: %v", data, err)
	}
}

func TestServerPing(t *testing.T) {
	s := NewServerWithIO(nil, nil, nil)

	resp, _ := roundTrip(t, s, "ping", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	s := NewServerWithIO(nil, nil, nil)

	resp, _ := roundTrip(t, s, "nonexistent.method", nil)
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected error code %d, got %d", CodeMethodNotFound, resp.Error.Code)
	}
}

func TestServerParseErrorAndNotifications(t *testing.T) {
	requests := []string{
		`{not json`,
		`{"jsonrpc":"2.0","method":"ping"}`,
		`{"jsonrpc":"2.0","method":"echo","params":[1]}`,
		``,
		`{"jsonrpc":"2.0","id":"a","method":"echo","params":{"x":1}}`,
	}
	var output bytes.Buffer
	s := NewServerWithIO(strings.NewReader(strings.Join(requests, "\n")+"\n"), &output, nil)
	var calls int
	s.Handle("echo", func(_ context.Context, params json.RawMessage) (any, error) {
		calls++
		return params, nil
	})
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d: %s", len(lines), output.String())
	}
	var first, second response
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.Error == nil || first.Error.Code != CodeParseError {
		t.Fatalf("expected parse error, got %s", lines[0])
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if got := string(*second.ID); got != `"a"` {
		t.Errorf("id = %s", got)
	}
	if calls != 2 {
		t.Errorf("echo called %d times, want 2", calls)
	}
}

func TestServerMethods(t *testing.T) {
	s := NewServerWithIO(nil, nil, nil)
	s.Handle("b.two", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	s.Handle("a.one", func(context.Context, json.RawMessage) (any, error) { return nil, nil })

	var names []string
	resp, _ := roundTrip(t, s, "rpc.methods", nil)
	result(t, resp, &names)
	if fmt.Sprint(names) != "[a.one b.two]" {
		t.Fatalf("methods = %v", names)
	}

	resp, _ = roundTrip(t, s, "a.one", nil)
	var empty map[string]any
	result(t, resp, &empty)
	if len(empty) != 0 {
		t.Fatalf("nil result encoded as %v", empty)
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&tplmerge.ConfigError{Field: "output directory"}, CodeConfig},
		{fmt.Errorf("wrapped: %w", tplmerge.ErrBusy), CodeBusy},
		{tplmerge.ErrNotFound, CodeNotFound},
		{tplmerge.ErrEncrypted, CodeUnsupported},
		{InvalidParams(errors.New("bad")), CodeInvalidParams},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		if got := toError(tt.err).Code; got != tt.code {
			t.Errorf("toError(%v) = %d, want %d", tt.err, got, tt.code)
		}
	}
}

func workspace(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	dirs := map[string]string{}
	for _, d := range []string{"sheets", "images", "out"} {
		dirs[d] = filepath.Join(root, d)
		if err := os.MkdirAll(dirs[d], 0o755); err != nil {
			t.Fatal(err)
		}
	}

	csv := "img_path,name\na.png,Ann\nform.pdf,Bob\nmissing.png,Cem\n"
	write := func(path string, data []byte) {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(dirs["sheets"], "people.csv"), []byte(csv))

	img := image.NewNRGBA(image.Rect(0, 0, 80, 40))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	write(filepath.Join(dirs["images"], "a.png"), buf.Bytes())

	form := pdftest.NewForm()
	form.Text("fullname", "")
	write(filepath.Join(dirs["images"], "form.pdf"), form.Bytes())

	a, err := app.Open(context.Background(), filepath.Join(root, "config.yaml"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })

	s := NewServerWithIO(nil, nil, nil)
	RegisterMethods(s, a)

	var paths Paths
	resp, _ := roundTrip(t, s, "paths.set", map[string]any{
		"spreadsheetDir": dirs["sheets"],
		"imageDir":       dirs["images"],
		"outputDir":      dirs["out"],
	})
	result(t, resp, &paths)
	if paths.ImageDir != dirs["images"] {
		t.Fatalf("paths.set = %+v", paths)
	}
	return s, dirs["out"]
}

func TestWorkspaceMethods(t *testing.T) {
	s, outDir := workspace(t)

	var activated map[string]string
	resp, _ := roundTrip(t, s, "templateSet.activate", map[string]any{"spreadsheet": "people.csv"})
	result(t, resp, &activated)
	if activated["templateSet"] != "people.csv" {
		t.Fatalf("activate = %v", activated)
	}

	var columns []string
	resp, _ = roundTrip(t, s, "spreadsheet.columns", nil)
	result(t, resp, &columns)
	if fmt.Sprint(columns) != "[img_path name]" {
		t.Fatalf("columns = %v", columns)
	}

	var rows []map[string]any
	resp, _ = roundTrip(t, s, "spreadsheet.rows", nil)
	result(t, resp, &rows)
	if len(rows) != 3 || rows[1]["name"] != "Bob" {
		t.Fatalf("rows = %v", rows)
	}

	resp, _ = roundTrip(t, s, "placements.save", map[string]any{
		"placements": map[string]any{
			"a.png": map[string]any{
				"name": map[string]any{"isEnabled": true, "x": 5, "y": 5, "fontSize": 14},
			},
		},
	})
	result(t, resp, new(bool))
	resp, _ = roundTrip(t, s, "replacements.save", map[string]any{
		"replacements": map[string]any{"form.pdf": map[string]string{"name": "fullname"}},
	})
	result(t, resp, new(bool))

	var placements tplmerge.Placements
	resp, _ = roundTrip(t, s, "placements.get", nil)
	result(t, resp, &placements)
	if p := placements["a.png"]["name"]; !p.IsEnabled || p.X != 5 || p.FontSize != 14 {
		t.Fatalf("placements.get = %+v", placements)
	}

	var images, documents []string
	resp, _ = roundTrip(t, s, "assets.images", nil)
	result(t, resp, &images)
	resp, _ = roundTrip(t, s, "assets.documents", nil)
	result(t, resp, &documents)
	if fmt.Sprint(images, documents) != "[a.png] [form.pdf]" {
		t.Fatalf("assets = %v %v", images, documents)
	}

	var fonts []string
	resp, _ = roundTrip(t, s, "assets.fonts", nil)
	result(t, resp, &fonts)
	if len(fonts) != 0 {
		t.Fatalf("fonts without a font directory = %v", fonts)
	}

	var family map[string]string
	resp, _ = roundTrip(t, s, "fonts.family", map[string]any{"file": "Open Sans-Bold.ttf"})
	result(t, resp, &family)
	if family["family"] != "OpenSansBold" {
		t.Fatalf("family = %v", family)
	}

	var fields []map[string]any
	resp, _ = roundTrip(t, s, "pdf.formFields", map[string]any{"asset": "form.pdf"})
	result(t, resp, &fields)
	if len(fields) != 1 || fields[0]["name"] != "fullname" || fields[0]["type"] != "TextField" {
		t.Fatalf("fields = %v", fields)
	}

	resp, _ = roundTrip(t, s, "pdf.formFields", map[string]any{"asset": "nope.pdf"})
	if resp.Error == nil || resp.Error.Code != CodeNotFound {
		t.Fatalf("missing asset: %+v", resp.Error)
	}

	var summary struct {
		Results []string       `json:"results"`
		Errors  []string       `json:"errors"`
		Skipped int            `json:"skipped"`
		State   string         `json:"state"`
		Counts  map[string]int `json:"counts"`
	}
	resp, notes := roundTrip(t, s, "batch.run", nil)
	result(t, resp, &summary)
	want := []string{filepath.Join(outDir, "people-1-a.png"), filepath.Join(outDir, "people-2-form.pdf")}
	if fmt.Sprint(summary.Results) != fmt.Sprint(want) {
		t.Fatalf("results = %v, want %v", summary.Results, want)
	}
	if len(summary.Errors) != 0 || summary.Skipped != 1 || summary.State != "completed" {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Counts["image"] != 1 || summary.Counts["document"] != 1 {
		t.Fatalf("counts = %v", summary.Counts)
	}
	if len(notes) != 3 {
		t.Fatalf("expected 3 progress notifications, got %d", len(notes))
	}
	for _, n := range notes {
		if n.Method != ProgressMethod {
			t.Errorf("notification %q", n.Method)
		}
	}

	var outputs []string
	resp, _ = roundTrip(t, s, "outputs.list", nil)
	result(t, resp, &outputs)
	if fmt.Sprint(outputs) != "[people-1-a.png people-2-form.pdf]" {
		t.Fatalf("outputs = %v", outputs)
	}

	var state map[string]string
	resp, _ = roundTrip(t, s, "batch.state", nil)
	result(t, resp, &state)
	if state["state"] != "completed" {
		t.Fatalf("state = %v", state)
	}
}

func TestWorkspaceInheritsPlacements(t *testing.T) {
	s, _ := workspace(t)

	roundTrip(t, s, "templateSet.activate", map[string]any{"spreadsheet": "people.csv"})
	resp, _ := roundTrip(t, s, "placements.save", map[string]any{
		"placements": map[string]any{"a.png": map[string]any{"name": map[string]any{"isEnabled": true, "x": 7}}},
	})
	result(t, resp, new(bool))

	resp, _ = roundTrip(t, s, "templateSet.activate", map[string]any{"spreadsheet": "other.csv"})
	result(t, resp, new(map[string]string))

	var placements tplmerge.Placements
	resp, _ = roundTrip(t, s, "placements.get", map[string]any{"templateSet": "other.csv"})
	result(t, resp, &placements)
	if placements["a.png"]["name"].X != 7 {
		t.Fatalf("inherited placements = %+v", placements)
	}
}

func TestPathsResetAndConfigErrors(t *testing.T) {
	s, _ := workspace(t)

	var paths Paths
	resp, _ := roundTrip(t, s, "paths.reset", nil)
	result(t, resp, &paths)
	if paths.ImageDir != "" || paths.OutputDir != "" {
		t.Fatalf("paths.reset = %+v", paths)
	}

	resp, _ = roundTrip(t, s, "batch.run", nil)
	if resp.Error == nil || resp.Error.Code != CodeConfig {
		t.Fatalf("batch.run without paths: %+v", resp.Error)
	}

	resp, _ = roundTrip(t, s, "spreadsheet.columns", nil)
	if resp.Error == nil || resp.Error.Code != CodeConfig {
		t.Fatalf("columns without spreadsheet: %+v", resp.Error)
	}

	resp, _ = roundTrip(t, s, "paths.set", map[string]any{"imageScale": 9})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("invalid scale accepted: %+v", resp)
	}

	resp, _ = roundTrip(t, s, "templateSet.activate", map[string]any{"spreadsheet": 3})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("bad params accepted: %+v", resp)
	}
}
