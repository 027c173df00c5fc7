package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    "E101",
			wantMsg: "Invalid config syntax",
			wantCat: CategoryConfig,
		},
		{
			name:    "route error",
			code:    "E111",
			wantMsg: "Duplicate route name",
			wantCat: CategoryRoute,
		},
		{
			name:    "store error",
			code:    "E131",
			wantMsg: "Unsupported state store",
			wantCat: CategoryStore,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "unknown flag %q", "--x")
	if err.Message != `unknown flag "--x"` {
		t.Errorf("Message = %q, want %q", err.Message, `unknown flag "--x"`)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"coded", New("E100"), "E100: Config file not found"},
		{"uncoded", &Error{Message: "test error"}, "test error"},
		{"wrapped", New("E103").Wrap(stderrors.New(`time: invalid duration "x"`)), `E103: Invalid duration: time: invalid duration "x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_WithLocation(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "waypoint.yaml")
	content := `routes:
  - path: /
    name: home
  - path: /users/:id(
    name: user
  - path: /about
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := New("E110").WithLocation(tmpFile, 4, 11)

	if err.Location == nil {
		t.Fatal("Location is nil")
	}
	if err.Location.File != tmpFile || err.Location.Line != 4 || err.Location.Column != 11 {
		t.Errorf("Location = %+v", err.Location)
	}
	if len(err.Context) != 5 {
		t.Fatalf("Context = %d lines, want 5", len(err.Context))
	}
	if err.Context[2] != "  - path: /users/:id(" {
		t.Errorf("Context[2] = %q", err.Context[2])
	}
}

func TestError_Builders(t *testing.T) {
	err := New("E103").
		WithDetail("guards.timeout").
		WithSuggestion(`Use a value like "5s"`).
		WithExample("guards:\n  timeout: 5s")

	if err.Detail != "guards.timeout" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Suggestion != `Use a value like "5s"` {
		t.Errorf("Suggestion = %q", err.Suggestion)
	}
	if err.Example != "guards:\n  timeout: 5s" {
		t.Errorf("Example = %q", err.Example)
	}
}

func TestError_Wrap(t *testing.T) {
	inner := os.ErrNotExist
	outer := New("E100").Wrap(inner)

	if outer.Unwrap() != inner {
		t.Error("Unwrap() should return wrapped error")
	}
	if !stderrors.Is(outer, os.ErrNotExist) {
		t.Error("errors.Is should see through the wrapper")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E140") != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	ce := New("E111")
	if FromError(ce, "E140") != ce {
		t.Error("FromError should return an *Error as-is")
	}
	if FromError(fmt.Errorf("add route: %w", ce), "E140") != ce {
		t.Error("FromError should find an *Error in the chain")
	}

	stdErr := stderrors.New("boom")
	result := FromError(stdErr, "E140")
	if result.Wrapped != stdErr || result.Code != "E140" {
		t.Errorf("FromError = %+v, want E140 wrapping boom", result)
	}
}

func TestLocation_String(t *testing.T) {
	tests := []struct {
		name string
		loc  *Location
		want string
	}{
		{"nil location", nil, ""},
		{"with column", &Location{File: "waypoint.toml", Line: 10, Column: 5}, "waypoint.toml:10:5"},
		{"without column", &Location{File: "waypoint.toml", Line: 10}, "waypoint.toml:10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	tmpFile := filepath.Join(t.TempDir(), "waypoint.json")
	content := "{\n  \"routes\": [\n    {\"path\": \"/a\",}\n  ]\n}\n"
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := New("E101").
		WithLocation(tmpFile, 3, 20).
		Wrap(stderrors.New("invalid character '}'")).
		WithSuggestion("Remove the trailing comma").
		WithExample(`{"path": "/a"}`)

	formatted := err.Format()

	for _, want := range []string{
		"E101",
		"Invalid config syntax",
		tmpFile,
		`→    3 │     {"path": "/a",}`,
		"Cause: invalid character '}'",
		"Hint: Remove the trailing comma",
		"Example:",
	} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Format() missing %q:\n%s", want, formatted)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("E101").WithLocation("waypoint.yaml", 10, 5)
	want := "waypoint.yaml:10:5: E101: Invalid config syntax"
	if got := err.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("E101").WithLocation("waypoint.yaml", 10, 5).Wrap(stderrors.New("bad"))

	var got map[string]any
	if jerr := json.Unmarshal([]byte(err.FormatJSON()), &got); jerr != nil {
		t.Fatalf("FormatJSON is not JSON: %v", jerr)
	}
	if got["code"] != "E101" || got["category"] != "config" || got["cause"] != "bad" {
		t.Errorf("FormatJSON = %v", got)
	}
	loc, ok := got["location"].(map[string]any)
	if !ok || loc["line"] != float64(10) {
		t.Errorf("location = %v", got["location"])
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, fmt.Errorf("load: %w", New("E100")))
	if !strings.Contains(buf.String(), "ERROR E100: Config file not found") {
		t.Errorf("PrintError coded = %q", buf.String())
	}

	buf.Reset()
	PrintError(&buf, stderrors.New("plain"))
	if !strings.Contains(buf.String(), "ERROR: plain") {
		t.Errorf("PrintError plain = %q", buf.String())
	}
}

func TestRegistry(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("GetAllCodes() should return codes")
	}
	for _, code := range codes {
		tmpl, _ := GetTemplate(code)
		if tmpl.Category == "" || tmpl.Message == "" {
			t.Errorf("%s: incomplete template %+v", code, tmpl)
		}
	}

	if _, ok := GetTemplate("E999"); ok {
		t.Error("E999 should not exist")
	}

	Register("E999", ErrorTemplate{Category: CategoryCLI, Message: "Custom test error"})
	defer delete(registry, "E999")
	if err := New("E999"); err.Message != "Custom test error" {
		t.Errorf("Message = %q, want %q", err.Message, "Custom test error")
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("short text", 100)
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("wrapText short text: got %v", got)
	}

	got = wrapText("this is a longer text that should be wrapped", 20)
	if len(got) != 3 {
		t.Errorf("wrapText long text: expected 3 lines, got %d: %v", len(got), got)
	}

	if got := wrapText("", 10); len(got) != 0 {
		t.Errorf("wrapText empty: expected empty, got %v", got)
	}
}

func TestColorFunctions(t *testing.T) {
	EnableColors()
	if !strings.Contains(red("test"), "\033[31m") {
		t.Error("red should contain ANSI code when colors enabled")
	}

	DisableColors()
	if strings.Contains(red("test"), "\033[") {
		t.Error("red should not contain ANSI code when colors disabled")
	}
	EnableColors()
}
