package webui

import (
	"html/template"
	"sync"
)

// Panel is the visible state of one result container.
type Panel struct {
	HTML    template.HTML
	Loading bool
	Visible bool
}

// Page holds every container of the console. Each container is written by
// exactly one action; the save section flag is written only by the preview.
type Page struct {
	mu          sync.Mutex
	panels      map[string]*Panel
	saveSection bool
	saveURL     string
	alert       string
}

func NewPage() *Page {
	return &Page{panels: make(map[string]*Panel)}
}

// Panel returns a copy of the container's current state.
func (p *Page) Panel(id string) Panel {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pn, ok := p.panels[id]; ok {
		return *pn
	}
	return Panel{}
}

func (p *Page) panel(id string) *Panel {
	pn, ok := p.panels[id]
	if !ok {
		pn = &Panel{}
		p.panels[id] = pn
	}
	return pn
}

func (p *Page) showLoading(id string) {
	p.mu.Lock()
	p.panel(id).Loading = true
	p.mu.Unlock()
}

func (p *Page) hideLoading(id string) {
	p.mu.Lock()
	p.panel(id).Loading = false
	p.mu.Unlock()
}

// clear empties the container before a new request.
func (p *Page) clear(id string) {
	p.mu.Lock()
	pn := p.panel(id)
	pn.HTML = ""
	pn.Visible = false
	p.mu.Unlock()
}

func (p *Page) render(id string, html template.HTML) {
	p.mu.Lock()
	pn := p.panel(id)
	pn.HTML = html
	pn.Visible = html != ""
	p.mu.Unlock()
}

func (p *Page) setSaveSection(visible bool, videoURL string) {
	p.mu.Lock()
	p.saveSection = visible
	if visible {
		p.saveURL = videoURL
	}
	p.mu.Unlock()
}

// SaveSection reports whether the save controls are shown and which URL
// the last successful preview used.
func (p *Page) SaveSection() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveSection, p.saveURL
}

func (p *Page) setAlert(msg string) {
	p.mu.Lock()
	p.alert = msg
	p.mu.Unlock()
}

// takeAlert returns the pending prompt once.
func (p *Page) takeAlert() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := p.alert
	p.alert = ""
	return msg
}
