// Package zimas looks up Los Angeles property records on the ZIMAS portal
// with a headless browser.
package zimas

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-research/internal/model"
)

// DefaultBaseURL is the public ZIMAS portal.
const DefaultBaseURL = "https://zimas.lacity.org"

const (
	acceptTermsXPath = `//input[@value='Accept']`
	houseNumberSel   = "#txtHouseNumber"
	streetNameSel    = "#txtStreetName"
	searchButtonSel  = "#btnSearchGo"
)

// Config tunes the browser lookup.
type Config struct {
	BaseURL     string
	Headless    bool
	PoolSize    int
	PageTimeout time.Duration
	// Settle is how long to let the results page render after submit.
	Settle time.Duration
}

// Client implements the property lookup against ZIMAS. Browsers are pooled
// and reused across lookups.
type Client struct {
	cfg  Config
	pool *Pool[*browser]
	now  func() time.Time
}

type browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
}

// New creates a Client. Browsers are launched on first use.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 2 * time.Second
	}
	c := &Client{cfg: cfg, now: time.Now}
	c.pool = NewPool(cfg.PoolSize, c.launch, closeBrowser)
	return c
}

// Close shuts down every pooled browser.
func (c *Client) Close() error { return c.pool.Close() }

func (c *Client) launch(ctx context.Context) (*browser, error) {
	l := launcher.New().
		Context(ctx).
		Headless(c.cfg.Headless).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "zimas: launch browser")
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, eris.Wrap(err, "zimas: connect browser")
	}
	zap.L().Debug("zimas: browser launched")
	return &browser{rod: b, launcher: l}, nil
}

func closeBrowser(b *browser) error {
	err := b.rod.Close()
	b.launcher.Kill()
	return err
}

// Search looks up the address. A portal "no results" page yields a record
// with Successful=false; browser or navigation failures are returned as
// errors.
func (c *Client) Search(ctx context.Context, addr model.AddressParts) (*model.PropertyRecord, error) {
	log := zap.L().With(zap.String("address", addr.String()))

	b, err := c.pool.Checkout(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := c.search(ctx, b, addr)
	if err != nil {
		// A failed session may leave the browser wedged; start fresh next time.
		c.pool.Discard(b)
		log.Warn("zimas: lookup failed", zap.Error(err))
		return nil, err
	}
	c.pool.Checkin(b)

	log.Info("zimas: lookup finished",
		zap.Bool("successful", rec.Successful),
		zap.Int("fields", rec.FieldCount()),
		zap.Int("tables", len(rec.Tables)),
	)
	return rec, nil
}

func (c *Client) search(ctx context.Context, b *browser, addr model.AddressParts) (*model.PropertyRecord, error) {
	page, err := b.rod.Context(ctx).Page(proto.TargetCreateTarget{URL: c.cfg.BaseURL})
	if err != nil {
		return nil, eris.Wrap(err, "zimas: open page")
	}
	defer page.Close() //nolint:errcheck

	p := page.Timeout(c.cfg.PageTimeout)
	if err := p.WaitLoad(); err != nil {
		return nil, eris.Wrap(err, "zimas: load portal")
	}

	acceptTerms(p)

	if err := fill(p, houseNumberSel, addr.HouseNumber); err != nil {
		return nil, err
	}
	if err := fill(p, streetNameSel, addr.StreetName); err != nil {
		return nil, err
	}
	btn, err := p.Element(searchButtonSel)
	if err != nil {
		return nil, eris.Wrap(err, "zimas: find search button")
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, eris.Wrap(err, "zimas: submit search")
	}
	_ = p.WaitIdle(c.cfg.Settle)

	doc, err := p.HTML()
	if err != nil {
		return nil, eris.Wrap(err, "zimas: read results page")
	}
	outcome := DetectOutcome(doc)
	if outcome != OutcomeFound {
		return buildRecord(addr, outcome, "", "", c.now())
	}

	expandSections(p)
	doc, err = p.HTML()
	if err != nil {
		return nil, eris.Wrap(err, "zimas: read expanded page")
	}
	var text string
	if body, err := p.Element("body"); err == nil {
		text, _ = body.Text()
	}
	return buildRecord(addr, outcome, doc, text, c.now())
}

// acceptTerms clicks through the terms page when it is shown.
func acceptTerms(p *rod.Page) {
	has, el, err := p.HasX(acceptTermsXPath)
	if err != nil || !has {
		return
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		zap.L().Debug("zimas: accept terms click failed", zap.Error(err))
		return
	}
	_ = p.WaitLoad()
}

func fill(p *rod.Page, selector, value string) error {
	el, err := p.Element(selector)
	if err != nil {
		return eris.Wrapf(err, "zimas: find %s", selector)
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(value); err != nil {
		return eris.Wrapf(err, "zimas: fill %s", selector)
	}
	return nil
}

// expandTargets are the collapsible section headings worth opening.
var expandTargets = []string{
	"Address/Legal",
	"Planning and Zoning",
	"Assessor",
	"Case Numbers",
	"Citywide/Code Amendment Cases",
	"Housing",
}

var skipHeadings = []string{
	"Jurisdictional", "Permitting and Zoning Compliance", "Additional",
	"Environmental", "Seismic Hazards", "Economic Development Areas", "Public Safety",
}

var skipHandlers = []string{"tooltip", "popup", "info", "help"}

// expandSections clicks each collapsed section heading once. Failures are
// ignored: an unexpanded section only means fewer fields.
func expandSections(p *rod.Page) {
	els, err := p.Elements("[onclick]")
	if err != nil {
		return
	}
	expanded := map[string]bool{}
	for _, el := range els {
		if len(expanded) == len(expandTargets) {
			break
		}
		text, err := el.Text()
		text = strings.TrimSpace(text)
		if err != nil || text == "" || len(text) > 50 || containsAny(text, skipHeadings) {
			continue
		}
		target := ""
		for _, t := range expandTargets {
			if strings.Contains(text, t) && !expanded[t] {
				target = t
				break
			}
		}
		if target == "" {
			continue
		}
		handler, _ := el.Attribute("onclick")
		if handler != nil && containsAny(strings.ToLower(*handler), skipHandlers) {
			continue
		}
		if _, err := el.Eval(`() => this.click()`); err != nil {
			continue
		}
		expanded[target] = true
	}
	_ = p.WaitIdle(500 * time.Millisecond)
	zap.L().Debug("zimas: sections expanded", zap.Int("count", len(expanded)))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// buildRecord turns a results page into a PropertyRecord.
func buildRecord(addr model.AddressParts, outcome Outcome, doc, text string, at time.Time) (*model.PropertyRecord, error) {
	rec := &model.PropertyRecord{Address: addr, RetrievedAt: at}
	switch outcome {
	case OutcomeNoResults:
		rec.Error = "ZIMAS returned no results for this address"
		return rec, nil
	case OutcomeUnknown:
		rec.Error = "ZIMAS search returned no property data"
		return rec, nil
	}

	tables, err := ExtractTables(doc)
	if err != nil {
		return nil, err
	}
	rec.Successful = true
	rec.Tables = tables
	rec.Fields = Flatten(tables)
	rec.Sections = Categorize(rec.Fields)
	rec.RawText = text
	return rec, nil
}
