package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/g3chat/internal/app"
	"github.com/atinyakov/g3chat/internal/client/api"
	"github.com/atinyakov/g3chat/internal/client/storage"
	"github.com/atinyakov/g3chat/internal/models"
	"github.com/atinyakov/g3chat/internal/server/handler/http"
)

// loginWait bounds how long "login" waits for the browser redirect.
const loginWait = 3 * time.Minute

const helpText = `Available commands:
  help                 show this list
  login                sign in with Google
  callback <url>       finish sign-in with a redirect URL pasted from the browser
  whoami               show the signed-in user
  logout               forget the session on this machine
  revoke               delete the account on the server and log out
  chats                list your chats
  open <id>            open a chat and print its history
  new                  start a new chat
  delete <id>          delete a chat
  send <text>          send a prompt (any other text is sent as well)
  provider [name]      show or pick the model provider (OpenAI, Google, Anthropic)
  model [name]         show or pick the model
  models               list the models of the current provider
  keys                 set the per-provider API keys
  apikey [value|-]     show, set or clear the active API key
  exit                 quit`

// shell is the interactive loop. Every failure is printed and the loop
// goes on.
type shell struct {
	ctrl      *app.Controller
	in        *bufio.Scanner
	out       io.Writer
	results   <-chan http.LoginResult
	listening bool
	loginWait time.Duration
}

func (s *shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func (s *shell) println(args ...any) {
	_, _ = fmt.Fprintln(s.out, args...)
}

func (s *shell) run(ctx context.Context) {
	if u := s.ctrl.Session.User(); u != nil {
		s.printf("Welcome back, %s.\n", u.Name)
	} else {
		s.println("Not signed in. Type 'login' to sign in with Google.")
	}

	for {
		s.printf("g3chat> ")
		if !s.in.Scan() {
			s.println()
			return
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		if !s.dispatch(ctx, cmd, rest, line) {
			return
		}
	}
}

// dispatch runs one command and reports false when the loop should stop.
func (s *shell) dispatch(ctx context.Context, cmd, arg, line string) bool {
	switch cmd {
	case "help":
		s.println(helpText)
	case "login":
		s.login(ctx)
	case "callback":
		if arg == "" {
			s.println("Usage: callback <url>")
			return true
		}
		location, err := url.Parse(arg)
		if err != nil {
			s.printf("Invalid URL: %v\n", err)
			return true
		}
		s.completeLogin(ctx, location)
	case "whoami":
		u := s.ctrl.Session.User()
		if u == nil || !s.ctrl.Session.IsAuthenticated() {
			s.println("Not signed in.")
			return true
		}
		s.printf("%s <%s>\n", u.Name, u.Email)
	case "logout":
		s.ctrl.Logout()
		s.println("Logged out.")
	case "revoke":
		if err := s.ctrl.RevokeAccount(ctx); err != nil {
			s.fail("Account deletion failed", err)
			return true
		}
		s.println("Account deleted.")
	case "chats":
		titles, err := s.ctrl.RefreshTitles(ctx)
		if err != nil {
			s.fail("Failed to load chats", err)
			return true
		}
		if len(titles) == 0 {
			s.println("No chats yet.")
		}
		current, hasCurrent := s.ctrl.Chat.CurrentChatID()
		for _, t := range titles {
			marker := " "
			if hasCurrent && t.ID == current {
				marker = "*"
			}
			s.printf("%s %4d  %s\n", marker, t.ID, t.Title)
		}
	case "open":
		id, ok := s.chatID(arg, "open")
		if !ok {
			return true
		}
		history, err := s.ctrl.OpenChat(ctx, id)
		if err != nil {
			s.fail("Failed to open chat", err)
			return true
		}
		for _, m := range history {
			s.printMessage(m)
		}
	case "new":
		s.ctrl.NewChat()
		s.println("New chat started.")
	case "delete":
		id, ok := s.chatID(arg, "delete")
		if !ok {
			return true
		}
		if err := s.ctrl.DeleteChat(ctx, id); err != nil {
			s.fail("Failed to delete chat", err)
			return true
		}
		s.println("Chat deleted.")
	case "send":
		s.send(ctx, arg)
	case "provider":
		if arg == "" {
			p, _ := s.ctrl.Chat.Selection()
			s.printf("Provider: %s\n", p)
			return true
		}
		p, err := models.ParseProvider(arg)
		if err != nil {
			s.printf("%v. Choose one of %v.\n", err, models.Providers)
			return true
		}
		_ = s.ctrl.SelectProvider(p)
		_, model := s.ctrl.Chat.Selection()
		s.printf("Provider: %s, model: %s\n", p, model)
	case "model":
		if arg == "" {
			p, model := s.ctrl.Chat.Selection()
			s.printf("%s / %s\n", p, model)
			return true
		}
		if err := s.ctrl.SelectModel(arg); err != nil {
			s.printf("%v. Type 'models' for the list.\n", err)
			return true
		}
		s.printf("Model: %s\n", arg)
	case "models":
		p, current := s.ctrl.Chat.Selection()
		for _, m := range models.Models[p] {
			marker := " "
			if m == current {
				marker = "*"
			}
			s.printf("%s %s\n", marker, m)
		}
	case "keys":
		keys := storage.PromptProviderKeys(s.in, s.out, s.ctrl.ProviderKeys())
		if err := s.ctrl.SaveProviderKeys(keys); err != nil {
			s.fail("Failed to save API keys", err)
			return true
		}
		s.println("API keys saved.")
	case "apikey":
		s.apiKey(arg)
	case "exit", "quit":
		s.println("Bye")
		return false
	default:
		s.send(ctx, line)
	}
	return true
}

func (s *shell) login(ctx context.Context) {
	s.drainResults()
	authURL, err := s.ctrl.BeginLogin(ctx)
	if err != nil {
		s.fail("Failed to initiate Google login", err)
		return
	}
	s.println("Open this URL in your browser to sign in:")
	s.println("  " + authURL)
	if !s.listening {
		s.println("Then paste the URL you are redirected to with: callback <url>")
		return
	}

	s.println("Waiting for the sign-in to complete...")
	select {
	case res := <-s.results:
		s.reportLogin(res.User, res.Err)
	case <-time.After(s.loginWait):
		s.println("Timed out waiting for the redirect. Use 'callback <url>' to finish.")
	case <-ctx.Done():
	}
}

// drainResults discards redirects handled while nobody was waiting, so
// login only reports the sign-in it starts.
func (s *shell) drainResults() {
	for {
		select {
		case <-s.results:
		default:
			return
		}
	}
}

func (s *shell) completeLogin(ctx context.Context, location *url.URL) {
	user, err := s.ctrl.CompleteLogin(ctx, location)
	s.reportLogin(user, err)
}

func (s *shell) reportLogin(user *models.User, err error) {
	if err != nil {
		s.fail("Authentication failed", err)
		return
	}
	s.printf("Signed in as %s <%s>.\n", user.Name, user.Email)
}

func (s *shell) send(ctx context.Context, prompt string) {
	reply, err := s.ctrl.Send(ctx, prompt)
	switch {
	case errors.Is(err, app.ErrEmptyPrompt):
		s.println("Usage: send <text>")
	case errors.Is(err, app.ErrStaleResponse):
	case errors.Is(err, app.ErrNotSignedIn):
		s.println("Not signed in. Type 'login' to sign in with Google.")
	default:
		s.printMessage(reply)
	}
}

func (s *shell) apiKey(arg string) {
	switch arg {
	case "":
		if key, ok := s.ctrl.APIKey.APIKey(); ok {
			s.printf("Active API key is set (%d characters).\n", len(key))
		} else {
			s.println("No active API key.")
		}
	case "-":
		s.ctrl.APIKey.SetAPIKey(nil)
		s.println("Active API key cleared.")
	default:
		s.ctrl.APIKey.SetAPIKey(&arg)
		s.println("Active API key saved.")
	}
}

func (s *shell) chatID(arg, cmd string) (int64, bool) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		s.printf("Usage: %s <id>\n", cmd)
		return 0, false
	}
	return id, true
}

func (s *shell) printMessage(m models.ChatMessage) {
	who := "you"
	if m.Role == models.RoleAI {
		who = "ai"
	}
	s.printf("[%s] %s\n", who, m.Text)
}

// fail prints a status line for err.
func (s *shell) fail(what string, err error) {
	if errors.Is(err, app.ErrNotSignedIn) {
		s.println("Not signed in. Type 'login' to sign in with Google.")
		return
	}
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		s.printf("%s: server returned %d.\n", what, httpErr.StatusCode)
		return
	}
	s.printf("%s: %v\n", what, err)
}
