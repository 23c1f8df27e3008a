package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/config"
	"github.com/JustJay7/ojv-scraper/pkg/logger"
	"github.com/go-resty/resty/v2"
)

const (
	logoutPath = "/salirN.php"

	// firstExtraPage is where pagination starts; page 1 is the initial search.
	firstExtraPage = 2
	// maxPage is the last page ever requested for one search.
	maxPage = 10
)

// ErrNotAuthenticated is logged when an operation needs a logged-in session.
var ErrNotAuthenticated = errors.New("session is not authenticated")

// Observer is told about every upstream operation a session performs.
type Observer interface {
	ObserveUpstream(op string, c Competency, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveUpstream(string, Competency, error) {}

// Options configures a Session.
type Options struct {
	BaseURL     string
	UserAgent   string
	DetailToken string
	Timeout     time.Duration
	Retries     int
	Pacing      Pacing

	// Authenticators defaults to DefaultAuthenticators(Pacing).
	Authenticators map[CredentialKind]Authenticator
	// Observer defaults to a no-op.
	Observer Observer
}

// OptionsFromConfig builds session options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:     cfg.PortalBaseURL,
		UserAgent:   cfg.UserAgent,
		DetailToken: cfg.DetailToken,
		Timeout:     cfg.ScraperTimeout,
		Retries:     cfg.ScraperRetries,
		Pacing:      PacingFromConfig(cfg),
	}
}

// Session is one authenticated conversation with the portal. It owns its own
// cookie jar; sessions are never shared implicitly between requests.
type Session struct {
	http        *resty.Client
	parser      *Parser
	logger      *logger.Logger
	pacing      Pacing
	detailToken string
	auth        map[CredentialKind]Authenticator
	observer    Observer
	loggedIn    atomic.Bool
}

// NewSession creates an anonymous session.
func NewSession(opts Options, log *logger.Logger) (*Session, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("portal base url is required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetCookieJar(jar).
		SetTimeout(timeout).
		SetRetryCount(opts.Retries).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeaders(map[string]string{
			"User-Agent":                opts.UserAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language":           "es-ES,es;q=0.8,en-US;q=0.5,en;q=0.3",
			"Upgrade-Insecure-Requests": "1",
		})

	auth := opts.Authenticators
	if auth == nil {
		auth = DefaultAuthenticators(opts.Pacing)
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Session{
		http:        client,
		parser:      NewParser(log),
		logger:      log,
		pacing:      opts.Pacing,
		detailToken: opts.DetailToken,
		auth:        auth,
		observer:    observer,
	}, nil
}

// Parser exposes the session's parser so callers can register extractors.
func (s *Session) Parser() *Parser {
	return s.parser
}

// IsAuthenticated reports whether the session is logged in.
func (s *Session) IsAuthenticated() bool {
	return s.loggedIn.Load()
}

// AssumeAuthenticated marks the session logged in without a handshake, for
// callers whose portal access is settled elsewhere.
func (s *Session) AssumeAuthenticated() {
	s.loggedIn.Store(true)
}

// Login authenticates with the given credential kind. Failures are logged
// and reported as false.
func (s *Session) Login(ctx context.Context, kind CredentialKind, username, password string) bool {
	auth, ok := s.auth[kind]
	if !ok {
		s.logger.Error("Login failed", "kind", kind, "error", ErrUnknownCredential)
		return false
	}

	s.logger.Info("Starting portal login", "kind", kind)
	err := auth.Authenticate(ctx, s, username, password)
	s.observer.ObserveUpstream("login", "", err)
	if err != nil {
		s.logger.Error("Login failed", "kind", kind, "error", err)
		return false
	}

	s.loggedIn.Store(true)
	s.logger.Info("Portal login succeeded", "kind", kind)
	return true
}

// Logout tells the portal to end the session. The session is anonymous
// afterwards whatever the portal answers.
func (s *Session) Logout(ctx context.Context) {
	defer s.loggedIn.Store(false)

	if _, err := s.Get(ctx, logoutPath); err != nil {
		s.logger.Warn("Logout request failed", "error", err)
		return
	}
	s.logger.Info("Portal session closed")
}

// Search looks a role up in one competency and follows pagination. Any
// failure is logged and yields whatever was collected, possibly nothing.
func (s *Session) Search(ctx context.Context, role string, c Competency) []CaseSummary {
	results := []CaseSummary{}

	if !s.IsAuthenticated() {
		s.logger.Error("Search refused", "role", role, "competency", c, "error", ErrNotAuthenticated)
		return results
	}
	spec, ok := competencies[c]
	if !ok {
		s.logger.Error("Search refused", "role", role, "competency", c, "error", ErrUnknownCompetency)
		return results
	}

	s.logger.Info("Searching case", "role", role, "competency", c)
	form := BuildForm(role, c)

	if err := pause(ctx, s.pacing.Request); err != nil {
		return results
	}
	body, err := s.PostForm(ctx, spec.searchPath, form)
	s.observer.ObserveUpstream("search", c, err)
	if err != nil {
		s.logger.Error("Search request failed", "role", role, "competency", c, "error", err)
		return results
	}

	results = s.parser.ParseSearchResults(body, c)
	if len(results) > 0 {
		results = append(results, s.nextPages(ctx, spec.searchPath, form, c)...)
	}

	s.logger.Info("Search finished", "role", role, "competency", c, "cases", len(results))
	return results
}

// nextPages requests pages 2..maxPage until one comes back empty or repeats
// the tail of what the previous pages added.
func (s *Session) nextPages(ctx context.Context, path string, form FieldMap, c Competency) []CaseSummary {
	var extra []CaseSummary

	for page := firstExtraPage; page <= maxPage; page++ {
		s.logger.Debug("Fetching results page", "competency", c, "page", page)

		if err := pause(ctx, s.pacing.Page); err != nil {
			return extra
		}
		body, err := s.PostForm(ctx, path, form.With("pagina", strconv.Itoa(page)))
		s.observer.ObserveUpstream("page", c, err)
		if err != nil {
			s.logger.Error("Results page request failed", "competency", c, "page", page, "error", err)
			return extra
		}

		batch := s.parser.ParseSearchResults(body, c)
		if len(batch) == 0 {
			return extra
		}
		if repeatsTail(extra, batch) {
			s.logger.Info("Duplicate results page, stopping pagination", "competency", c, "page", page)
			return extra
		}
		extra = append(extra, batch...)
	}

	s.logger.Warn("Page limit reached", "competency", c, "limit", maxPage)
	return extra
}

// repeatsTail reports whether batch equals the same-length suffix of acc.
func repeatsTail(acc, batch []CaseSummary) bool {
	if len(acc) < len(batch) {
		return false
	}
	return slices.Equal(acc[len(acc)-len(batch):], batch)
}

// FetchDetail retrieves the detail modal of a case. Any failure is logged and
// reported as nil.
func (s *Session) FetchDetail(ctx context.Context, caseID string, c Competency) *CaseDetail {
	if !s.IsAuthenticated() {
		s.logger.Error("Detail refused", "case_id", caseID, "competency", c, "error", ErrNotAuthenticated)
		return nil
	}
	spec, ok := competencies[c]
	if !ok {
		s.logger.Error("Detail refused", "case_id", caseID, "competency", c, "error", ErrUnknownCompetency)
		return nil
	}

	s.logger.Info("Fetching case detail", "case_id", caseID, "competency", c)
	if err := pause(ctx, s.pacing.Request); err != nil {
		return nil
	}
	body, err := s.PostForm(ctx, spec.detailPath, FieldMap{
		"dtaCausa": caseID,
		"token":    s.detailToken,
	})
	s.observer.ObserveUpstream("detail", c, err)
	if err != nil {
		s.logger.Error("Detail request failed", "case_id", caseID, "competency", c, "error", err)
		return nil
	}

	detail := s.parser.ParseDetail(body, c)
	return &detail
}

// Get performs a GET against the portal and returns the body.
func (s *Session) Get(ctx context.Context, path string) ([]byte, error) {
	res, err := s.http.R().SetContext(ctx).Get(path)
	return checkResponse(res, err)
}

// PostForm posts a form-encoded body to the portal and returns the response body.
func (s *Session) PostForm(ctx context.Context, path string, form FieldMap) ([]byte, error) {
	res, err := s.http.R().SetContext(ctx).SetFormData(form).Post(path)
	return checkResponse(res, err)
}

func checkResponse(res *resty.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("%s %s: unexpected status %d", res.Request.Method, res.Request.URL, res.StatusCode())
	}
	return res.Body(), nil
}
