// Package backend provides a gin-based stand-in for the checkout session
// and lead endpoints.
package backend

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionRequest is the decoded body of a session request
type SessionRequest struct {
	Email         *string                `json:"email"`
	FunnelType    string                 `json:"funnel_type"`
	CurrentLocale string                 `json:"current_locale"`
	CustomerID    *string                `json:"customer_id"`
	SessionID     *string                `json:"session_id"`
	Items         []map[string]any       `json:"items"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// LeadRequest is the decoded body of a lead request
type LeadRequest struct {
	Action        string            `json:"action"`
	Email         string            `json:"email"`
	CurrentLocale string            `json:"current_locale"`
	Metadata      map[string]string `json:"metadata"`
}

// Failure is a canned error response
type Failure struct {
	Status int
	Body   string
}

// Backend emulates the session endpoints (POST / and POST /upsell) and the
// lead action multiplexed on POST /.
type Backend struct {
	engine *gin.Engine
	server *httptest.Server

	mu        sync.Mutex
	sessions  []SessionRequest
	leads     []LeadRequest
	knownLead map[string]bool
	issued    int
	failures  []Failure
	delay     func(SessionRequest) time.Duration
	customer  string
}

// New creates a backend; call Start to serve it
func New() *Backend {
	gin.SetMode(gin.TestMode)
	b := &Backend{
		engine:    gin.New(),
		knownLead: make(map[string]bool),
	}
	b.engine.POST("/", b.handleBase)
	b.engine.POST("/upsell", b.handleUpsell)
	return b
}

// Start serves the backend on a local listener
func (b *Backend) Start() *Backend {
	b.server = httptest.NewServer(b.engine)
	return b
}

// Close stops the server
func (b *Backend) Close() {
	if b.server != nil {
		b.server.Close()
	}
}

// URL is the base session and lead endpoint
func (b *Backend) URL() string {
	return b.server.URL + "/"
}

// UpsellURL is the upsell session endpoint
func (b *Backend) UpsellURL() string {
	return b.server.URL + "/upsell"
}

// Handler exposes the routes for in-process use
func (b *Backend) Handler() http.Handler {
	return b.engine
}

// FailNext queues a failure for the next session request
func (b *Backend) FailNext(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, Failure{Status: status, Body: body})
}

// DelayWhen delays session responses by the returned duration
func (b *Backend) DelayWhen(delay func(SessionRequest) time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = delay
}

// WithCustomer makes session responses carry a customer id
func (b *Backend) WithCustomer(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.customer = id
}

// Sessions returns the session requests received so far
func (b *Backend) Sessions() []SessionRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SessionRequest(nil), b.sessions...)
}

// Leads returns the lead requests received so far
func (b *Backend) Leads() []LeadRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]LeadRequest(nil), b.leads...)
}

func (b *Backend) handleBase(c *gin.Context) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := c.ShouldBindBodyWithJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if envelope.Action == "create_lead" {
		b.handleLead(c)
		return
	}
	b.handleSession(c, map[string]bool{"option_a": true, "option_b": true})
}

func (b *Backend) handleUpsell(c *gin.Context) {
	b.handleSession(c, map[string]bool{"upsell": true})
}

func (b *Backend) handleLead(c *gin.Context) {
	var req LeadRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	b.mu.Lock()
	b.leads = append(b.leads, req)
	existing := b.knownLead[req.Email]
	b.knownLead[req.Email] = true
	b.mu.Unlock()

	if req.Email == "" {
		c.JSON(http.StatusOK, gin.H{"error": "email is required"})
		return
	}
	status := "lead_created"
	if existing {
		status = "lead_already_exists"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (b *Backend) handleSession(c *gin.Context, funnels map[string]bool) {
	var req SessionRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	b.mu.Lock()
	b.sessions = append(b.sessions, req)
	b.issued++
	n := b.issued
	var failure *Failure
	if len(b.failures) > 0 {
		failure = &b.failures[0]
		b.failures = b.failures[1:]
	}
	delay := b.delay
	customer := b.customer
	b.mu.Unlock()

	if delay != nil {
		if d := delay(req); d > 0 {
			select {
			case <-time.After(d):
			case <-c.Request.Context().Done():
				return
			}
		}
	}

	if failure != nil {
		c.String(failure.Status, failure.Body)
		return
	}
	if !funnels[req.FunnelType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported funnel_type %q", req.FunnelType)})
		return
	}
	if req.Metadata == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "metadata is required"})
		return
	}

	resp := gin.H{"clientSecret": fmt.Sprintf("cs_test_%d", n)}
	if customer != "" {
		resp["customer_id"] = customer
	}
	c.JSON(http.StatusOK, resp)
}
