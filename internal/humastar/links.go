package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// StreamTag marks SSE operations. They get no generated links.
const StreamTag = "live"

// Linker derives RFC 8288 Link headers from the registered operations and
// adds them to responses.
type Linker struct {
	entry string

	mu    sync.RWMutex
	links map[string][]string
}

// NewLinker creates a Linker whose entry point (the page every collection
// points "up" to) is entry, usually "/health".
func NewLinker(entry string) *Linker {
	return &Linker{entry: entry, links: map[string][]string{}}
}

// Build walks the OpenAPI paths of api. Call it after every route is
// registered.
func (l *Linker) Build(api huma.API) {
	oapi := api.OpenAPI()
	links := map[string][]string{}
	add := func(from, to, rel string) {
		v := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		if !slices.Contains(links[from], v) {
			links[from] = append(links[from], v)
		}
	}

	var collections, items []string
	tags := map[string][]string{}
	for p, pi := range oapi.Paths {
		t := primaryTags(pi)
		if slices.Contains(t, StreamTag) {
			continue
		}
		tags[p] = t
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	slices.Sort(collections)
	slices.Sort(items)

	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; ok {
			add(item, parent, "collection")
			add(item, parent, "up")
		}
	}

	for _, c := range collections {
		for _, item := range items {
			if path.Dir(item) == c {
				add(c, item, "item")
			}
		}
		if c == l.entry {
			continue
		}
		add(c, l.entry, "up")
		add(l.entry, c, lastSegment(c))
		// Routes under the same tag (e.g. areas and area-selection) point at each other.
		for _, other := range collections {
			if other != c && other != l.entry && sharesTag(tags[c], tags[other]) {
				add(c, other, lastSegment(other))
			}
		}
	}
	add(l.entry, "/openapi.json", "describedby")
	add(l.entry, "/openapi.json", "service-desc")
	add(l.entry, "/docs", "service-doc")

	for _, p := range slices.Concat(collections, items) {
		if ref := responseSchema(oapi.Paths[p]); ref != "" {
			add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	for p, headers := range links {
		pi, ok := oapi.Paths[p]
		if !ok {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				documentLinks(op, headers)
			}
		}
	}

	l.mu.Lock()
	l.links = links
	l.mu.Unlock()
}

// For returns the generated headers of an operation path.
func (l *Linker) For(opPath string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.links[opPath]
}

// Root returns the entry point's links, for the page served at "/".
func (l *Linker) Root() []string {
	return l.For(l.entry)
}

// Transformer adds the generated links, a self link for item paths and the
// links a body offers through [Pager] and [Actor].
func (l *Linker) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func sharesTag(a, b []string) bool {
	for _, t := range a {
		if slices.Contains(b, t) {
			return true
		}
	}
	return false
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}

// documentLinks mirrors the headers as OpenAPI Link objects on the first
// 2xx response of op.
func documentLinks(op *huma.Operation, headers []string) {
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		href, rel, ok := splitLink(h)
		if !ok {
			continue
		}
		resp.Links[rel] = &huma.Link{OperationRef: href, Description: "Related: " + rel}
	}
}

// responseSchema names the component schema of the GET success body.
func responseSchema(pi *huma.PathItem) string {
	if pi == nil || pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return path.Base(mt.Schema.Ref)
			}
		}
	}
	return ""
}

// splitLink parses `<href>; rel="name"`.
func splitLink(h string) (href, rel string, ok bool) {
	target, params, found := strings.Cut(h, ";")
	if !found {
		return "", "", false
	}
	params = strings.TrimSpace(params)
	if !strings.HasPrefix(params, `rel="`) {
		return "", "", false
	}
	href = strings.Trim(strings.TrimSpace(target), "<>")
	rel = strings.Trim(strings.TrimPrefix(params, "rel="), `"`)
	return href, rel, rel != ""
}
