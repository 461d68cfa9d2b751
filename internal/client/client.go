// Package client is a typed HTTP client for the library API together with a
// client-side store that mirrors server state after each mutation.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"communitylibrary/internal/models"
	"communitylibrary/internal/services"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the /api surface. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default client, which has a 10s timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken starts the client with an existing bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// New accepts "host:port" or a full base URL.
func New(baseURL string, opts ...ClientOption) (*Client, error) {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

// Login stores the returned token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*services.LoginResult, error) {
	var out services.LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", nil,
		map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	c.setToken(out.Token)
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	c.setToken("")
	return nil
}

// ─── Books ────────────────────────────────────────────────────────────────────

type BookQuery struct {
	Status   models.BookStatus
	Category string
	Search   string
}

func (q BookQuery) values() url.Values {
	v := url.Values{}
	setIf(v, "status", string(q.Status))
	setIf(v, "category", q.Category)
	setIf(v, "search", q.Search)
	return v
}

type BookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	Category      string `json:"category,omitempty"`
	PublishedYear int    `json:"publishedYear,omitempty"`
}

type BookUpdate struct {
	Title         *string `json:"title,omitempty"`
	Author        *string `json:"author,omitempty"`
	ISBN          *string `json:"isbn,omitempty"`
	Category      *string `json:"category,omitempty"`
	PublishedYear *int    `json:"publishedYear,omitempty"`
}

func (c *Client) ListBooks(ctx context.Context, q BookQuery) ([]models.Book, error) {
	var out []models.Book
	return out, c.do(ctx, http.MethodGet, "/api/books", q.values(), nil, &out)
}

func (c *Client) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var out models.Book
	if err := c.do(ctx, http.MethodGet, "/api/books/"+id.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBook(ctx context.Context, in BookRequest) (*models.Book, error) {
	var out models.Book
	if err := c.do(ctx, http.MethodPost, "/api/books", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBook(ctx context.Context, id uuid.UUID, in BookUpdate) (*models.Book, error) {
	var out models.Book
	if err := c.do(ctx, http.MethodPut, "/api/books/"+id.String(), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/books/"+id.String(), nil, nil, nil)
}

// ─── Persons ──────────────────────────────────────────────────────────────────

type PersonQuery struct {
	Type   models.PersonType
	Status models.PersonStatus
	Search string
}

type PersonRequest struct {
	Name       string              `json:"name"`
	Email      string              `json:"email"`
	Phone      string              `json:"phone,omitempty"`
	Address    string              `json:"address,omitempty"`
	PersonType models.PersonType   `json:"personType,omitempty"`
	Status     models.PersonStatus `json:"status,omitempty"`
	LibraryID  string              `json:"libraryId,omitempty"`
}

func (c *Client) ListPersons(ctx context.Context, q PersonQuery) ([]models.Person, error) {
	v := url.Values{}
	setIf(v, "type", string(q.Type))
	setIf(v, "status", string(q.Status))
	setIf(v, "search", q.Search)
	var out []models.Person
	return out, c.do(ctx, http.MethodGet, "/api/persons", v, nil, &out)
}

func (c *Client) CreatePerson(ctx context.Context, in PersonRequest) (*models.Person, error) {
	var out models.Person
	if err := c.do(ctx, http.MethodPost, "/api/persons", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePerson(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/persons/"+id.String(), nil, nil, nil)
}

// ─── Circulation ──────────────────────────────────────────────────────────────

type borrowRequest struct {
	BookID   uuid.UUID `json:"bookId"`
	PersonID uuid.UUID `json:"personId"`
}

func (c *Client) ListBorrowings(ctx context.Context, status models.BorrowingStatus) ([]models.Borrowing, error) {
	v := url.Values{}
	setIf(v, "status", string(status))
	var out []models.Borrowing
	return out, c.do(ctx, http.MethodGet, "/api/borrowings", v, nil, &out)
}

func (c *Client) Borrow(ctx context.Context, bookID, personID uuid.UUID) (*models.Borrowing, error) {
	var out models.Borrowing
	if err := c.do(ctx, http.MethodPost, "/api/borrowings", nil, borrowRequest{bookID, personID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Return(ctx context.Context, borrowingID uuid.UUID) (*models.Borrowing, error) {
	var out models.Borrowing
	err := c.do(ctx, http.MethodPut, "/api/borrowings/"+borrowingID.String(), nil,
		map[string]string{"action": "return"}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListReservations(ctx context.Context, status models.ReservationStatus) ([]models.Reservation, error) {
	v := url.Values{}
	setIf(v, "status", string(status))
	var out []models.Reservation
	return out, c.do(ctx, http.MethodGet, "/api/reservations", v, nil, &out)
}

func (c *Client) Reserve(ctx context.Context, bookID, personID uuid.UUID) (*models.Reservation, error) {
	var out models.Reservation
	if err := c.do(ctx, http.MethodPost, "/api/reservations", nil, borrowRequest{bookID, personID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return c.reservationAction(ctx, id, "cancel")
}

func (c *Client) MarkReservationReady(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return c.reservationAction(ctx, id, "ready")
}

func (c *Client) reservationAction(ctx context.Context, id uuid.UUID, action string) (*models.Reservation, error) {
	var out models.Reservation
	err := c.do(ctx, http.MethodPut, "/api/reservations/"+id.String(), nil,
		map[string]string{"action": action}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/reservations/"+id.String(), nil, nil, nil)
}

// ─── Attendance ───────────────────────────────────────────────────────────────

type attendanceRequest struct {
	Action   string     `json:"action"`
	PersonID *uuid.UUID `json:"personId,omitempty"`
	RecordID *uuid.UUID `json:"recordId,omitempty"`
}

// ListAttendance lists records; a zero day means every day.
func (c *Client) ListAttendance(ctx context.Context, day time.Time, openOnly bool) ([]models.Attendance, error) {
	v := url.Values{}
	if !day.IsZero() {
		v.Set("date", day.UTC().Format("2006-01-02"))
	}
	if openOnly {
		v.Set("open", "true")
	}
	var out []models.Attendance
	return out, c.do(ctx, http.MethodGet, "/api/attendance", v, nil, &out)
}

func (c *Client) CheckIn(ctx context.Context, personID uuid.UUID) (*models.Attendance, error) {
	return c.attendance(ctx, attendanceRequest{Action: "check-in", PersonID: &personID})
}

func (c *Client) CheckOut(ctx context.Context, personID uuid.UUID) (*models.Attendance, error) {
	return c.attendance(ctx, attendanceRequest{Action: "check-out", PersonID: &personID})
}

func (c *Client) attendance(ctx context.Context, in attendanceRequest) (*models.Attendance, error) {
	var out models.Attendance
	if err := c.do(ctx, http.MethodPost, "/api/attendance", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ─── Administration ───────────────────────────────────────────────────────────

type SettingsUpdate struct {
	LibraryName       *string              `json:"libraryName,omitempty"`
	MaxBorrowDays     *int                 `json:"maxBorrowDays,omitempty"`
	MaxBooksPerMember *int                 `json:"maxBooksPerMember,omitempty"`
	OverdueFinePerDay *decimal.Decimal     `json:"overdueFinePerDay,omitempty"`
	Notifications     *NotificationsUpdate `json:"notifications,omitempty"`
	Theme             *string              `json:"theme,omitempty"`
	Language          *string              `json:"language,omitempty"`
}

type NotificationsUpdate struct {
	EmailEnabled    *bool `json:"emailEnabled,omitempty"`
	SMSEnabled      *bool `json:"smsEnabled,omitempty"`
	DueReminderDays *int  `json:"dueReminderDays,omitempty"`
	OverdueAlerts   *bool `json:"overdueAlerts,omitempty"`
}

func (c *Client) GetSettings(ctx context.Context) (*models.Settings, error) {
	var out models.Settings
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSettings(ctx context.Context, in SettingsUpdate) (*models.Settings, error) {
	var out models.Settings
	if err := c.do(ctx, http.MethodPut, "/api/settings", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DashboardStats fetches the dashboard; an empty timeRange uses the server default.
func (c *Client) DashboardStats(ctx context.Context, timeRange string) (*services.DashboardStats, error) {
	v := url.Values{}
	setIf(v, "timeRange", timeRange)
	var out services.DashboardStats
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/stats", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendEmail(ctx context.Context, to, subject, message string) (*services.SendResult, error) {
	var out services.SendResult
	err := c.do(ctx, http.MethodPost, "/api/notifications/email", nil,
		map[string]string{"to": to, "subject": subject, "message": message}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendSMS(ctx context.Context, to, message string) (*services.SendResult, error) {
	var out services.SendResult
	err := c.do(ctx, http.MethodPost, "/api/notifications/sms", nil,
		map[string]string{"to": to, "message": message}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
