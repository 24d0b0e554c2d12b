package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth        *AuthHandler
	Events      *EventHandler
	Assignments *AssignmentHandler
	Swaps       *SwapHandler
	Preferences *PreferenceHandler
	Calendar    *CalendarHandler
	Volunteers  *VolunteerHandler
	Reminders   *ReminderHandler

	// Session wraps routes that require an authenticated principal. The
	// login route, the calendar feed, and the reminder trigger stay open.
	Session func(http.Handler) http.Handler

	// Middleware wraps the whole router, outermost first.
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(fn http.HandlerFunc) http.HandlerFunc {
		if cfg.Session == nil {
			return fn
		}
		wrapped := cfg.Session(fn)
		return wrapped.ServeHTTP
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.HandleFunc("/sessions/current", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		}))
	}

	if cfg.Events != nil {
		mux.HandleFunc("/events", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Events.List(w, r)
			case http.MethodPost:
				cfg.Events.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.HandleFunc("/events/", protect(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/events/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithPathID(r.Context(), id))
			switch r.Method {
			case http.MethodGet:
				cfg.Events.Get(w, r)
			case http.MethodPut:
				cfg.Events.Update(w, r)
			case http.MethodDelete:
				cfg.Events.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
	}

	if cfg.Assignments != nil {
		mux.HandleFunc("/assignments", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Assignments.List(w, r)
			case http.MethodPost:
				cfg.Assignments.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.HandleFunc("/assignments/", protect(func(w http.ResponseWriter, r *http.Request) {
			id, action := splitPathAction(r.URL.Path, "/assignments/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithPathID(r.Context(), id))
			switch {
			case action == "" && r.Method == http.MethodGet:
				cfg.Assignments.Get(w, r)
			case action == "" && r.Method == http.MethodDelete:
				cfg.Assignments.Delete(w, r)
			case action == "swap" && r.Method == http.MethodPost && cfg.Swaps != nil:
				cfg.Swaps.Open(w, r)
			case action == "":
				methodNotAllowed(w, http.MethodGet, http.MethodDelete)
			default:
				http.NotFound(w, r)
			}
		}))
	}

	if cfg.Swaps != nil {
		mux.HandleFunc("/swaps", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Swaps.ListOpen(w, r)
		}))
		mux.HandleFunc("/swaps/", protect(func(w http.ResponseWriter, r *http.Request) {
			id, action := splitPathAction(r.URL.Path, "/swaps/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithPathID(r.Context(), id))
			switch {
			case action == "accept" && r.Method == http.MethodPost:
				cfg.Swaps.Accept(w, r)
			case action == "decline" && r.Method == http.MethodPost:
				cfg.Swaps.Decline(w, r)
			case action == "" && r.Method == http.MethodDelete:
				cfg.Swaps.Cancel(w, r)
			case action == "":
				methodNotAllowed(w, http.MethodDelete)
			default:
				http.NotFound(w, r)
			}
		}))
	}

	if cfg.Preferences != nil {
		mux.HandleFunc("/preferences", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Preferences.Get(w, r)
			case http.MethodPut:
				cfg.Preferences.Save(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		}))
		mux.HandleFunc("/push-subscriptions", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				cfg.Preferences.Subscribe(w, r)
			case http.MethodDelete:
				cfg.Preferences.Unsubscribe(w, r)
			default:
				methodNotAllowed(w, http.MethodPost, http.MethodDelete)
			}
		}))
	}

	if cfg.Calendar != nil {
		mux.HandleFunc("/calendar/feeds/", func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.URL.Path, "/calendar/feeds/")
			if token == "" || strings.Contains(token, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Calendar.Feed(w, r, token)
		})
		mux.HandleFunc("/calendar/token", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Calendar.RotateToken(w, r)
		}))
	}

	if cfg.Volunteers != nil {
		mux.HandleFunc("/volunteers", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Volunteers.List(w, r)
			case http.MethodPost:
				cfg.Volunteers.Register(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.HandleFunc("/volunteers/", protect(func(w http.ResponseWriter, r *http.Request) {
			id, action := splitPathAction(r.URL.Path, "/volunteers/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithPathID(r.Context(), id))
			switch {
			case action == "" && r.Method == http.MethodGet:
				cfg.Volunteers.Get(w, r)
			case action == "promote" && r.Method == http.MethodPost:
				cfg.Volunteers.Promote(w, r)
			case action == "demote" && r.Method == http.MethodPost:
				cfg.Volunteers.Demote(w, r)
			case action == "transfer-super" && r.Method == http.MethodPost:
				cfg.Volunteers.TransferSuper(w, r)
			case action == "":
				methodNotAllowed(w, http.MethodGet)
			default:
				http.NotFound(w, r)
			}
		}))
	}

	if cfg.Reminders != nil {
		mux.HandleFunc("/internal/reminders/scan", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Reminders.Trigger(w, r)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// splitPathAction separates "/prefix/{id}" and "/prefix/{id}/{action}".
func splitPathAction(path, prefix string) (id, action string) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		action = strings.Trim(parts[1], "/")
	}
	return id, action
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
