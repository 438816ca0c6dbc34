package setup

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestGlobalConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := GlobalConfig{APIKey: "secret", APIURL: "https://oh.example.com"}
	if err := SaveGlobalConfig(path, cfg); err != nil {
		t.Fatalf("SaveGlobalConfig failed: %v", err)
	}

	loaded, err := LoadGlobalConfig(path)
	if err != nil {
		t.Fatalf("LoadGlobalConfig failed: %v", err)
	}
	if loaded != cfg {
		t.Errorf("round trip mismatch: %+v != %+v", loaded, cfg)
	}
}

func TestLoadGlobalConfigMissing(t *testing.T) {
	if _, err := LoadGlobalConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("missing config should error")
	}
}

func TestWizardEmptyKeyRejected(t *testing.T) {
	m := New("https://oh.example.com", filepath.Join(t.TempDir(), "config.json"))

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model := updated.(Model)
	if model.step != stepKey {
		t.Errorf("empty key should stay on input step, got %v", model.step)
	}
	if model.errMsg == "" {
		t.Error("empty key should surface an error message")
	}
}

func TestWizardVerifyAndSave(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer the-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"contexts": []}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "config.json")
	m := New(srv.URL, path)
	m.input.SetValue("the-key")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model := updated.(Model)
	if model.step != stepVerify {
		t.Fatalf("expected verify step, got %v", model.step)
	}
	if cmd == nil {
		t.Fatal("expected a verify command")
	}

	msg := model.verify("the-key")()
	result, ok := msg.(verifyResultMsg)
	if !ok || !result.ok {
		t.Fatalf("verification should succeed, got %#v", msg)
	}

	updated, _ = model.Update(result)
	model = updated.(Model)
	if model.step != stepDone {
		t.Fatalf("expected done step, got %v (err %q)", model.step, model.errMsg)
	}

	cfg, err := LoadGlobalConfig(path)
	if err != nil {
		t.Fatalf("config should be written: %v", err)
	}
	if cfg.APIKey != "the-key" || cfg.APIURL != srv.URL {
		t.Errorf("unexpected saved config: %+v", cfg)
	}
}

func TestWizardVerifyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := New(srv.URL, filepath.Join(t.TempDir(), "config.json"))
	m.input.SetValue("bad-key")

	msg := m.verify("bad-key")()
	result := msg.(verifyResultMsg)
	if result.ok {
		t.Fatal("verification should fail")
	}

	updated, _ := m.Update(result)
	model := updated.(Model)
	if model.step != stepFailed {
		t.Errorf("expected failed step, got %v", model.step)
	}
	if !strings.Contains(model.View(), "Setup failed") {
		t.Errorf("failure view should say so: %q", model.View())
	}
}
