// Fedora Commons 3.x REST API [Repository] implementation
package services

import (
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	findPageSize    = 100
	modelPredicate  = "info:fedora/fedora-system:def/model#hasModel"
	fedoraURIPrefix = "info:fedora/"
)

var errNotFound = errors.New("not found")

// FedoraOpts configures a [FedoraService].
type FedoraOpts struct {
	BaseURL           string        // Repository root, e.g. https://repo.example.edu/fedora
	Username          string        // Basic auth user; ignored when Token is set
	Password          string        // Basic auth password
	Token             string        // Optional bearer token
	Timeout           time.Duration // Per-request timeout; zero disables
	RequestsPerSecond float64       // Request budget shared by every session; zero disables
	Transport         http.RoundTripper
}

// FedoraService implements [Repository] against the Fedora REST API (API-A and API-M).
//
// Each FedoraService owns its own [http.Client] and cookie jar; [FedoraService.NewSession] opens
// another one that shares the transport and rate limiter.
type FedoraService struct {
	baseURL    string
	username   string
	password   string
	bearer     bool
	timeout    time.Duration
	transport  http.RoundTripper
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewFedoraService validates opts and creates a new Fedora client.
func NewFedoraService(opts FedoraOpts) (*FedoraService, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid repository url %q", shared.ErrInvalidConfig, opts.BaseURL)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"}),
			Base:   transport,
		}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	f := &FedoraService{
		baseURL:   base,
		username:  opts.Username,
		password:  opts.Password,
		bearer:    opts.Token != "",
		timeout:   opts.Timeout,
		transport: transport,
		limiter:   limiter,
	}
	f.httpClient = f.newClient()
	return f, nil
}

func (f *FedoraService) newClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Transport: f.transport, Timeout: f.timeout, Jar: jar}
}

// NewSession returns an independent client for use by a single goroutine.
func (f *FedoraService) NewSession() (Repository, error) {
	session := *f
	session.httpClient = f.newClient()
	return &session, nil
}

// Sessions adapts [FedoraService.NewSession] to a [SessionFactory].
func (f *FedoraService) Sessions() SessionFactory {
	return f.NewSession
}

// BaseURL returns the repository root the service talks to.
func (f *FedoraService) BaseURL() string {
	return f.baseURL
}

// GetObject fetches an object profile.
func (f *FedoraService) GetObject(ctx context.Context, pid string) (*models.ObjectProfile, error) {
	body, err := f.doRequest(ctx, http.MethodGet, objectPath(pid), url.Values{"format": {"xml"}})
	if err != nil {
		return nil, mapNotFound(err, shared.ErrObjectNotFound, pid)
	}

	var profile fedoraObjectProfile
	if err := xml.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("%w: failed to decode object profile for %s: %v", shared.ErrAPIRequest, pid, err)
	}
	return profile.toModel(pid), nil
}

// ListDatastreams lists the datastream ids of an object.
func (f *FedoraService) ListDatastreams(ctx context.Context, pid string) ([]string, error) {
	body, err := f.doRequest(ctx, http.MethodGet, objectPath(pid)+"/datastreams", url.Values{"format": {"xml"}})
	if err != nil {
		return nil, mapNotFound(err, shared.ErrObjectNotFound, pid)
	}

	var list fedoraDatastreamList
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: failed to decode datastream list for %s: %v", shared.ErrAPIRequest, pid, err)
	}

	ids := make([]string, 0, len(list.Datastreams))
	for _, ds := range list.Datastreams {
		ids = append(ids, ds.DSID)
	}
	return ids, nil
}

// GetDatastream fetches a datastream profile, optionally as of a version date.
func (f *FedoraService) GetDatastream(ctx context.Context, pid, dsid string, asOf time.Time) (*models.DatastreamProfile, error) {
	profile, err := f.datastreamProfile(ctx, pid, dsid, asOf, false)
	if err != nil {
		return nil, err
	}
	return profile.toModel(pid, dsid), nil
}

// ValidateChecksum has the repository recompute and compare the datastream checksum.
func (f *FedoraService) ValidateChecksum(ctx context.Context, pid, dsid string, asOf time.Time) (bool, error) {
	profile, err := f.datastreamProfile(ctx, pid, dsid, asOf, true)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(profile.ChecksumValid), "true"), nil
}

func (f *FedoraService) datastreamProfile(ctx context.Context, pid, dsid string, asOf time.Time, validate bool) (*fedoraDatastreamProfile, error) {
	query := url.Values{"format": {"xml"}}
	if validate {
		query.Set("validateChecksum", "true")
	}
	if !asOf.IsZero() {
		query.Set("asOfDateTime", models.FormatDate(asOf))
	}

	body, err := f.doRequest(ctx, http.MethodGet, datastreamPath(pid, dsid), query)
	if err != nil {
		return nil, mapNotFound(err, shared.ErrDatastreamNotFound, pid+"/"+dsid)
	}

	var profile fedoraDatastreamProfile
	if err := xml.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("%w: failed to decode datastream profile for %s/%s: %v", shared.ErrAPIRequest, pid, dsid, err)
	}
	return &profile, nil
}

// DatastreamHistory lists the stored versions of a datastream, newest first as the repository reports them.
func (f *FedoraService) DatastreamHistory(ctx context.Context, pid, dsid string) ([]models.DatastreamVersion, error) {
	body, err := f.doRequest(ctx, http.MethodGet, datastreamPath(pid, dsid)+"/history", url.Values{"format": {"xml"}})
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", shared.ErrHistoryUnavailable, pid, dsid, err)
	}

	var history fedoraDatastreamHistory
	if err := xml.Unmarshal(body, &history); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", shared.ErrHistoryUnavailable, pid, dsid, err)
	}

	versions := make([]models.DatastreamVersion, 0, len(history.Profiles))
	for _, p := range history.Profiles {
		created := parseFedoraDate(p.CreateDate)
		if created.IsZero() {
			return nil, fmt.Errorf("%w: %s/%s: version %q has no creation date", shared.ErrHistoryUnavailable, pid, dsid, p.VersionID)
		}
		versions = append(versions, models.DatastreamVersion{VersionID: p.VersionID, Created: created})
	}
	return versions, nil
}

// SetChecksumType modifies the checksum algorithm of a datastream, causing the repository to store a new checksum.
func (f *FedoraService) SetChecksumType(ctx context.Context, pid, dsid, checksumType, logMessage string) error {
	query := url.Values{"checksumType": {checksumType}}
	if logMessage != "" {
		query.Set("logMessage", logMessage)
	}
	if _, err := f.doRequest(ctx, http.MethodPut, datastreamPath(pid, dsid), query); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", shared.ErrSaveFailed, pid, dsid, err)
	}
	return nil
}

// DiscoverObjects yields every object pid in the repository.
//
// Without a content model the findObjects API is paged through its session token;
// with one, the resource index is queried for objects having that model.
func (f *FedoraService) DiscoverObjects(ctx context.Context, contentModel string) iter.Seq2[string, error] {
	if strings.TrimSpace(contentModel) != "" {
		return f.objectsWithModel(ctx, contentModel)
	}
	return f.findObjects(ctx)
}

func (f *FedoraService) findObjects(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		query := url.Values{
			"query":        {"pid~*"},
			"pid":          {"true"},
			"resultFormat": {"xml"},
			"maxResults":   {fmt.Sprint(findPageSize)},
		}
		for {
			body, err := f.doRequest(ctx, http.MethodGet, "/objects", query)
			if err != nil {
				yield("", err)
				return
			}

			var page fedoraFindResult
			if err := xml.Unmarshal(body, &page); err != nil {
				yield("", fmt.Errorf("%w: failed to decode search results: %v", shared.ErrAPIRequest, err))
				return
			}

			for _, pid := range page.PIDs {
				if !yield(strings.TrimSpace(pid), nil) {
					return
				}
			}

			token := strings.TrimSpace(page.Token)
			if token == "" {
				return
			}
			query.Set("sessionToken", token)
		}
	}
}

func (f *FedoraService) objectsWithModel(ctx context.Context, contentModel string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		model := contentModel
		if !strings.HasPrefix(model, fedoraURIPrefix) {
			model = fedoraURIPrefix + model
		}
		sparql := fmt.Sprintf("SELECT ?pid WHERE { ?pid <%s> <%s> }", modelPredicate, model)
		query := url.Values{
			"type":   {"tuples"},
			"lang":   {"sparql"},
			"format": {"CSV"},
			"flush":  {"false"},
			"query":  {sparql},
		}

		body, err := f.doRequest(ctx, http.MethodGet, "/risearch", query)
		if err != nil {
			yield("", err)
			return
		}

		reader := csv.NewReader(strings.NewReader(string(body)))
		reader.FieldsPerRecord = -1
		header := true
		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("%w: failed to parse resource index results: %v", shared.ErrAPIRequest, err))
				return
			}
			if header {
				header = false
				continue
			}
			if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
				continue
			}
			if !yield(strings.TrimPrefix(strings.TrimSpace(record[0]), fedoraURIPrefix), nil) {
				return
			}
		}
	}
}

// doRequest performs a request relative to the repository root and returns the body of a 2xx response.
func (f *FedoraService) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	fullURL := f.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if !f.bearer && f.username != "" {
		req.SetBasicAuth(f.username, f.password)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d)", shared.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s (status %d): %s", shared.ErrServiceUnavailable, method, resp.StatusCode, snippet(body))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, snippet(body))
	}
	return body, nil
}

func mapNotFound(err error, notFound error, what string) error {
	if errors.Is(err, errNotFound) {
		return fmt.Errorf("%w: %s", notFound, what)
	}
	return err
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func objectPath(pid string) string {
	return "/objects/" + url.PathEscape(pid)
}

func datastreamPath(pid, dsid string) string {
	return objectPath(pid) + "/datastreams/" + url.PathEscape(dsid)
}

var _ Repository = (*FedoraService)(nil)
