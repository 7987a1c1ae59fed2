package http

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"runtime"
	"sort"
	"strings"
)

// RouteInfo describes one registered route.
type RouteInfo struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Handler string `json:"handler"`
}

// RouteStats is the result of walking the router.
type RouteStats struct {
	Total   int            `json:"total"`
	Methods map[string]int `json:"methods"`
	Routes  []RouteInfo    `json:"routes"`
}

// RouteFilters narrows and orders the route listing.
type RouteFilters struct {
	Method string
	Path   string
	SortBy string // path (default), method, handler
}

// CollectRoutes walks the router and gathers every registered route.
func CollectRoutes(router Router) RouteStats {
	stats := RouteStats{
		Methods: make(map[string]int),
		Routes:  []RouteInfo{},
	}

	_ = router.Walk(func(method, path string, handler http.Handler) error {
		stats.Routes = append(stats.Routes, RouteInfo{
			Method:  method,
			Path:    path,
			Handler: handlerName(handler),
		})
		stats.Methods[method]++
		stats.Total++
		return nil
	})

	return stats
}

// handlerName resolves the handler's function name via the runtime.
// Method values carry a "-fm" suffix which is stripped.
func handlerName(handler http.Handler) string {
	fn := runtime.FuncForPC(reflect.ValueOf(handler).Pointer())
	if fn == nil {
		return fmt.Sprintf("%T", handler)
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// PrintRoutes writes the filtered route listing to w in the requested
// format: table (default), json, csv, or simple.
func PrintRoutes(w io.Writer, stats RouteStats, format string, filters RouteFilters) {
	routes := filterRoutes(stats.Routes, filters)
	sortRoutes(routes, filters.SortBy)

	switch format {
	case "json":
		printRoutesJSON(w, routes, stats)
	case "csv":
		printRoutesCSV(w, routes)
	case "simple":
		for _, r := range routes {
			fmt.Fprintf(w, "%-8s %s\n", r.Method, r.Path)
		}
	default:
		printRoutesTable(w, routes, stats)
	}
}

func filterRoutes(routes []RouteInfo, filters RouteFilters) []RouteInfo {
	if filters.Method == "" && filters.Path == "" {
		return routes
	}

	filtered := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		if filters.Method != "" && !strings.EqualFold(r.Method, filters.Method) {
			continue
		}
		if filters.Path != "" && !strings.Contains(r.Path, filters.Path) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func sortRoutes(routes []RouteInfo, by string) {
	sort.Slice(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		switch by {
		case "method":
			if a.Method != b.Method {
				return a.Method < b.Method
			}
			return a.Path < b.Path
		case "handler":
			return a.Handler < b.Handler
		default:
			if a.Path != b.Path {
				return a.Path < b.Path
			}
			return a.Method < b.Method
		}
	})
}

func printRoutesTable(w io.Writer, routes []RouteInfo, stats RouteStats) {
	fmt.Fprintf(w, "Registered routes: %d\n\n", stats.Total)

	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		if count, ok := stats.Methods[m]; ok {
			fmt.Fprintf(w, "  %-8s %d\n", m, count)
		}
	}

	rule := strings.Repeat("-", 110)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-8s %-50s %s\n", "METHOD", "PATH", "HANDLER")
	fmt.Fprintln(w, rule)

	for _, r := range routes {
		handler := r.Handler
		if len(handler) > 50 {
			handler = "..." + handler[len(handler)-47:]
		}
		fmt.Fprintf(w, "%-8s %-50s %s\n", r.Method, r.Path, handler)
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Showing %d of %d routes\n", len(routes), stats.Total)
}

func printRoutesJSON(w io.Writer, routes []RouteInfo, stats RouteStats) {
	out := RouteStats{
		Total:   stats.Total,
		Methods: stats.Methods,
		Routes:  routes,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func printRoutesCSV(w io.Writer, routes []RouteInfo) {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"method", "path", "handler"})
	for _, r := range routes {
		_ = cw.Write([]string{r.Method, r.Path, r.Handler})
	}
	cw.Flush()
}
