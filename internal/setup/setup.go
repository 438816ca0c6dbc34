// Package setup is the interactive wizard for the Open Horizons
// integration. It collects an API key, verifies it against the OH API, and
// writes the shared config file at ~/.config/openhorizons/config.json that
// both phasegate and the OH MCP server read.
package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/phasegate/internal/oh"
)

// DefaultAPIURL is the hosted OH instance.
const DefaultAPIURL = "https://app.openhorizons.me"

// GlobalConfig is the shared OH credentials file.
type GlobalConfig struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url"`
}

// GlobalConfigPath returns ~/.config/openhorizons/config.json.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "openhorizons", "config.json"), nil
}

// SaveGlobalConfig writes the credentials file, creating parent
// directories as needed.
func SaveGlobalConfig(path string, cfg GlobalConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadGlobalConfig reads the credentials file.
func LoadGlobalConfig(path string) (GlobalConfig, error) {
	var cfg GlobalConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// openBrowser opens a URL in the default browser, best effort.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("cmd", "/c", "start", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

type step int

const (
	stepKey step = iota
	stepVerify
	stepDone
	stepFailed
)

type verifyResultMsg struct {
	ok  bool
	err error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model is the Bubbletea model for the setup wizard.
type Model struct {
	apiURL     string
	configPath string
	input      textinput.Model
	spin       spinner.Model
	step       step
	errMsg     string
	quitting   bool
}

// New creates a setup model targeting the given API URL and config path.
func New(apiURL, configPath string) Model {
	ti := textinput.New()
	ti.Placeholder = "paste your API key"
	ti.EchoMode = textinput.EchoPassword
	ti.CharLimit = 200
	ti.Width = 50
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		apiURL:     apiURL,
		configPath: configPath,
		input:      ti,
		spin:       sp,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// verify checks the key against the contexts endpoint.
func (m Model) verify(key string) tea.Cmd {
	apiURL := m.apiURL
	return func() tea.Msg {
		client := oh.NewClient(oh.Config{APIURL: apiURL, APIKey: key})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if client.Ping(ctx) {
			return verifyResultMsg{ok: true}
		}
		return verifyResultMsg{ok: false, err: fmt.Errorf("API key verification failed")}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.step == stepKey {
				key := strings.TrimSpace(m.input.Value())
				if key == "" {
					m.errMsg = "No API key provided."
					return m, nil
				}
				m.errMsg = ""
				m.step = stepVerify
				return m, tea.Batch(m.spin.Tick, m.verify(key))
			}
			if m.step == stepDone || m.step == stepFailed {
				m.quitting = true
				return m, tea.Quit
			}
		}

	case verifyResultMsg:
		if !msg.ok {
			m.step = stepFailed
			m.errMsg = msg.err.Error()
			return m, nil
		}
		cfg := GlobalConfig{
			APIKey: strings.TrimSpace(m.input.Value()),
			APIURL: m.apiURL,
		}
		if err := SaveGlobalConfig(m.configPath, cfg); err != nil {
			m.step = stepFailed
			m.errMsg = err.Error()
			return m, nil
		}
		m.step = stepDone
		return m, nil

	case spinner.TickMsg:
		if m.step == stepVerify {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.step == stepKey {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Open Horizons Setup"))
	b.WriteString("\n\n")

	switch m.step {
	case stepKey:
		b.WriteString("Get an API key from " + m.apiURL + "/settings/api-keys\n")
		b.WriteString(mutedStyle.Render("A browser window should have opened; create or copy a key there."))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		if m.errMsg != "" {
			b.WriteString(errorStyle.Render(m.errMsg))
			b.WriteString("\n")
		}
		b.WriteString(mutedStyle.Render("enter to verify, esc to cancel"))

	case stepVerify:
		b.WriteString(m.spin.View())
		b.WriteString(" Verifying API key...")

	case stepDone:
		b.WriteString(successStyle.Render("API key verified."))
		b.WriteString("\n\n")
		b.WriteString("Configuration saved to " + m.configPath + "\n\n")
		b.WriteString("Next steps:\n")
		b.WriteString("  1. Set oh_endeavor_id in .phasegate/config.yaml (or OH_ENDEAVOR_ID)\n")
		b.WriteString("  2. Export OH_API_KEY in your shell profile\n\n")
		b.WriteString(mutedStyle.Render("enter to finish"))

	case stepFailed:
		b.WriteString(errorStyle.Render("Setup failed: " + m.errMsg))
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("enter to exit"))
	}

	b.WriteString("\n")
	return b.String()
}

// Run starts the interactive setup wizard.
func Run() error {
	configPath, err := GlobalConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Existing configuration found at %s; it will be overwritten on save.\n\n", configPath)
	}

	// Best effort; the view repeats the URL for manual opening.
	_ = openBrowser(DefaultAPIURL + "/settings/api-keys")

	p := tea.NewProgram(New(DefaultAPIURL, configPath))
	_, err = p.Run()
	return err
}
