package datastructure

import (
	"strings"

	"lintang/routefare/pkg/server"
)

// Path is a non-empty, cycle-free chain of routes from an origin-adjacent
// route to a destination-adjacent route.
type Path struct {
	routes []RouteID
}

func NewPath(ids ...RouteID) (Path, error) {
	if len(ids) == 0 {
		return Path{}, server.WrapErrorf(nil, server.ErrBadParamInput, "path must contain at least one route")
	}
	seen := make(map[RouteID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return Path{}, server.WrapErrorf(nil, server.ErrBadParamInput, "route %s repeats in path", id)
		}
		seen[id] = struct{}{}
	}
	routes := make([]RouteID, len(ids))
	copy(routes, ids)
	return Path{routes: routes}, nil
}

// Extend returns a new path with id appended. The receiver is not modified.
func (p Path) Extend(id RouteID) (Path, error) {
	if p.Contains(id) {
		return Path{}, server.WrapErrorf(nil, server.ErrBadParamInput, "route %s repeats in path", id)
	}
	routes := make([]RouteID, len(p.routes)+1)
	copy(routes, p.routes)
	routes[len(p.routes)] = id
	return Path{routes: routes}, nil
}

func (p Path) Contains(id RouteID) bool {
	for _, r := range p.routes {
		if r == id {
			return true
		}
	}
	return false
}

func (p Path) Len() int {
	return len(p.routes)
}

// Hops is the number of route-to-route transitions.
func (p Path) Hops() int {
	if len(p.routes) == 0 {
		return 0
	}
	return len(p.routes) - 1
}

func (p Path) First() RouteID {
	return p.routes[0]
}

func (p Path) Last() RouteID {
	return p.routes[len(p.routes)-1]
}

func (p Path) At(i int) RouteID {
	return p.routes[i]
}

// IDs returns a copy of the route ids in travel order.
func (p Path) IDs() []RouteID {
	ids := make([]RouteID, len(p.routes))
	copy(ids, p.routes)
	return ids
}

func (p Path) String() string {
	parts := make([]string, len(p.routes))
	for i, r := range p.routes {
		parts[i] = string(r)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
