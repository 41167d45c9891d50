package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	authdomain "zenith-backend/internal/auth/domain"
	emaildomain "zenith-backend/internal/email/domain"
	notesdomain "zenith-backend/internal/notes/domain"
	"zenith-backend/pkg/gmail"
)

type fakeSubscriptionRepo struct {
	mu      sync.Mutex
	subs    map[string]*emaildomain.Subscription
	upserts int
	findErr error
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: make(map[string]*emaildomain.Subscription)}
}

func subKey(userID, provider string) string { return userID + "/" + provider }

func (r *fakeSubscriptionRepo) Upsert(sub *emaildomain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	copied := *sub
	r.subs[subKey(sub.UserID, sub.Provider)] = &copied
	return nil
}

func (r *fakeSubscriptionRepo) Find(userID, provider string) (*emaildomain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	sub, ok := r.subs[subKey(userID, provider)]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeSubscriptionRepo) Delete(userID, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, subKey(userID, provider))
	return nil
}

func (r *fakeSubscriptionRepo) FindActive(provider string) ([]emaildomain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emaildomain.Subscription
	for _, sub := range r.subs {
		if sub.Provider == provider && sub.Status == emaildomain.SubscriptionActive {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSubscriptionRepo) FindRenewable(cutoff time.Time) ([]emaildomain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emaildomain.Subscription
	for _, sub := range r.subs {
		if sub.Status != emaildomain.SubscriptionActive && sub.Status != emaildomain.SubscriptionFailed {
			continue
		}
		if sub.ExpiresAt == nil || sub.ExpiresAt.After(cutoff) {
			continue
		}
		out = append(out, *sub)
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) UpdateStatus(userID, provider, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[subKey(userID, provider)]; ok {
		sub.Status = status
	}
	return nil
}

func (r *fakeSubscriptionRepo) get(userID, provider string) *emaildomain.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[subKey(userID, provider)]
}

type fakeWatermarkRepo struct {
	mu       sync.Mutex
	wms      map[string]*emaildomain.PollWatermark
	advances []string
}

func newFakeWatermarkRepo() *fakeWatermarkRepo {
	return &fakeWatermarkRepo{wms: make(map[string]*emaildomain.PollWatermark)}
}

func (r *fakeWatermarkRepo) Get(userID string) (*emaildomain.PollWatermark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wm, ok := r.wms[userID]
	if !ok {
		return nil, nil
	}
	copied := *wm
	return &copied, nil
}

func (r *fakeWatermarkRepo) Seed(userID string, intervalSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wms[userID]; ok {
		return nil
	}
	r.wms[userID] = &emaildomain.PollWatermark{
		UserID:          userID,
		Enabled:         true,
		IntervalSeconds: intervalSeconds,
	}
	return nil
}

func (r *fakeWatermarkRepo) ListEnabled() ([]emaildomain.PollWatermark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emaildomain.PollWatermark
	for _, wm := range r.wms {
		if wm.Enabled {
			out = append(out, *wm)
		}
	}
	return out, nil
}

func (r *fakeWatermarkRepo) Advance(userID, provider, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wm, ok := r.wms[userID]
	if !ok {
		return fmt.Errorf("no poll watermark for user %s", userID)
	}
	r.advances = append(r.advances, provider+":"+messageID)
	if last := wm.LastProcessed(provider); last != nil && messageID <= *last {
		return nil
	}
	wm.SetLastProcessed(provider, messageID)
	return nil
}

func (r *fakeWatermarkRepo) ClearProvider(userID, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wm, ok := r.wms[userID]; ok {
		switch provider {
		case emaildomain.ProviderGmail:
			wm.LastProcessedGmail = nil
		case emaildomain.ProviderImap:
			wm.LastProcessedImap = nil
		}
	}
	return nil
}

func (r *fakeWatermarkRepo) Delete(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.wms, userID)
	return nil
}

type fakeRetryRepo struct {
	mu      sync.Mutex
	entries []emaildomain.AnalysisRetry
	nextID  int
}

func (r *fakeRetryRepo) Enqueue(userID, provider, messageID string, nextRetryAt time.Time, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		e := &r.entries[i]
		if e.UserID == userID && e.Provider == provider && e.MessageID == messageID {
			e.Attempts++
			e.NextRetryAt = nextRetryAt
			e.LastError = lastError
			return nil
		}
	}
	r.nextID++
	r.entries = append(r.entries, emaildomain.AnalysisRetry{
		ID:          fmt.Sprintf("retry-%d", r.nextID),
		UserID:      userID,
		Provider:    provider,
		MessageID:   messageID,
		Attempts:    1,
		NextRetryAt: nextRetryAt,
		LastError:   lastError,
	})
	return nil
}

func (r *fakeRetryRepo) Due(now time.Time, limit int) ([]emaildomain.AnalysisRetry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emaildomain.AnalysisRetry
	for _, e := range r.entries {
		if !e.NextRetryAt.After(now) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeRetryRepo) Reschedule(id string, nextRetryAt time.Time, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries[i].Attempts++
			r.entries[i].NextRetryAt = nextRetryAt
			r.entries[i].LastError = lastError
		}
	}
	return nil
}

func (r *fakeRetryRepo) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeRetryRepo) DeleteForUser(userID, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.UserID != userID || e.Provider != provider {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return nil
}

func (r *fakeRetryRepo) all() []emaildomain.AnalysisRetry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emaildomain.AnalysisRetry(nil), r.entries...)
}

type fakeAnalysisRepo struct {
	mu       sync.Mutex
	saved    []emaildomain.EmailAnalysis
	existing map[string]bool
	saveErr  error
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{existing: make(map[string]bool)}
}

func (r *fakeAnalysisRepo) Save(analysis *emaildomain.EmailAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, *analysis)
	r.existing[analysis.UserID+"/"+analysis.Provider+"/"+analysis.MessageID] = true
	return nil
}

func (r *fakeAnalysisRepo) Exists(userID, provider, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.existing[userID+"/"+provider+"/"+messageID], nil
}

func (r *fakeAnalysisRepo) ListByUser(userID string, limit int) ([]emaildomain.EmailAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emaildomain.EmailAnalysis
	for _, a := range r.saved {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeNoteRepo struct {
	mu    sync.Mutex
	notes []notesdomain.Note
}

func (r *fakeNoteRepo) Create(note *notesdomain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, *note)
	return nil
}

func (r *fakeNoteRepo) ListByUser(userID string, limit int) ([]notesdomain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notesdomain.Note(nil), r.notes...), nil
}

type fakeAI struct {
	mu      sync.Mutex
	calls   int
	analyze func(from, subject, body string) (*emaildomain.EmailAnalysis, error)
}

func (a *fakeAI) AnalyzeEmail(ctx context.Context, from, subject, body string) (*emaildomain.EmailAnalysis, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.analyze != nil {
		return a.analyze(from, subject, body)
	}
	return &emaildomain.EmailAnalysis{Importance: 3, Summary: "nothing urgent"}, nil
}

func (a *fakeAI) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type notifiedEmail struct {
	userID   string
	msg      *emaildomain.EmailMessage
	analysis *emaildomain.EmailAnalysis
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifiedEmail
}

func (n *fakeNotifier) NotifyImportantEmail(ctx context.Context, userID string, msg *emaildomain.EmailMessage, analysis *emaildomain.EmailAnalysis) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifiedEmail{userID: userID, msg: msg, analysis: analysis})
}

type fakeSource struct {
	mu       sync.Mutex
	provider string
	ids      []string
	listErr  error
	messages map[string]*emaildomain.EmailMessage
	fetchErr map[string]error
	fetched  []string
}

func (s *fakeSource) Provider() string { return s.provider }

func (s *fakeSource) ListNew(ctx context.Context, userID string, since *string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []string
	for _, id := range s.ids {
		if since != nil && id <= *since {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeSource) Fetch(ctx context.Context, userID, messageID string) (*emaildomain.EmailMessage, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, messageID)
	s.mu.Unlock()
	if err, ok := s.fetchErr[messageID]; ok {
		return nil, err
	}
	if msg, ok := s.messages[messageID]; ok {
		return msg, nil
	}
	return &emaildomain.EmailMessage{ID: messageID, Provider: s.provider, From: "sender@example.com", Subject: "hello"}, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*authdomain.User
}

func newFakeUserRepo(users ...*authdomain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*authdomain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByID(id string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *fakeUserRepo) Update(user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

type historyCall struct {
	startHistoryID string
}

type fakeGmailAPI struct {
	mu           sync.Mutex
	watchResult  *gmail.WatchResult
	watchErr     error
	watchCalls   int
	historyAdded []string
	historyID    string
	historyErr   error
	historyCalls []historyCall
	messages     map[string]*emaildomain.EmailMessage
}

func (g *fakeGmailAPI) Watch(ctx context.Context, accessToken, refreshToken, topicName string, onTokenRefresh emaildomain.TokenUpdateFunc) (*gmail.WatchResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watchCalls++
	if g.watchErr != nil {
		return nil, g.watchErr
	}
	return g.watchResult, nil
}

func (g *fakeGmailAPI) StopWatch(ctx context.Context, accessToken, refreshToken string, onTokenRefresh emaildomain.TokenUpdateFunc) error {
	return nil
}

func (g *fakeGmailAPI) History(ctx context.Context, accessToken, refreshToken, startHistoryID string, onTokenRefresh emaildomain.TokenUpdateFunc) ([]string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.historyCalls = append(g.historyCalls, historyCall{startHistoryID: startHistoryID})
	if g.historyErr != nil {
		return nil, "", g.historyErr
	}
	return g.historyAdded, g.historyID, nil
}

func (g *fakeGmailAPI) ListMessageIDs(ctx context.Context, accessToken, refreshToken string, max int, onTokenRefresh emaildomain.TokenUpdateFunc) ([]string, error) {
	return nil, nil
}

func (g *fakeGmailAPI) GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh emaildomain.TokenUpdateFunc) (*emaildomain.EmailMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if msg, ok := g.messages[messageID]; ok {
		return msg, nil
	}
	return &emaildomain.EmailMessage{ID: messageID, Provider: emaildomain.ProviderGmail, From: "sender@example.com", Subject: "hello"}, nil
}

func (g *fakeGmailAPI) GetProfileAddress(ctx context.Context, accessToken, refreshToken string, onTokenRefresh emaildomain.TokenUpdateFunc) (string, error) {
	return "user@example.com", nil
}
