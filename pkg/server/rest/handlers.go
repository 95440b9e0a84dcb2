package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/server"
	"lintang/routefare/pkg/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

const (
	StatusOK          = "OK"
	StatusNoPathFound = "NoPathFound"
)

type RouteService interface {
	ResolvePaths(ctx context.Context, origin, destination datastructure.Coordinate, radius float64) ([]datastructure.Itinerary, error)
	NearestRoutes(ctx context.Context, origin, destination datastructure.Coordinate, radius float64) ([]datastructure.Route, error)
	AllRoutes(ctx context.Context) ([]datastructure.Route, error)
	GetRoute(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error)
	StoreRoute(ctx context.Context, route datastructure.Route) (datastructure.Route, error)
}

type RouteHandler struct {
	svc RouteService
}

func RouteRouter(r *chi.Mux, svc RouteService) {
	handler := &RouteHandler{svc}

	r.Group(func(r chi.Router) {
		r.Route("/api/routes", func(r chi.Router) {
			r.Post("/paths", handler.resolvePaths)
			r.Post("/nearest", handler.nearestRoutes)
			r.Get("/", handler.allRoutes)
			r.Post("/", handler.storeRoute)
			r.Get("/{id}", handler.getRoute)
		})
		r.Get("/api/health", handler.health)
	})
}

// Coord model info
//
//	@Description	latitude dan longitude WGS-84
type Coord struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

func (c Coord) coordinate() datastructure.Coordinate {
	return datastructure.Coordinate{Lat: *c.Lat, Lon: *c.Lon}
}

// PathsRequest model info
//
//	@Description	request body untuk mencari rute angkutan umum dari origin ke destination
type PathsRequest struct {
	Origin      Coord   `json:"origin"`
	Destination Coord   `json:"destination"`
	Radius      float64 `json:"radius" validate:"omitempty,gt=0,lte=5000"` // meter, default dari config
}

func (s *PathsRequest) Bind(r *http.Request) error {
	if s.Origin.Lat == nil || s.Destination.Lat == nil {
		return errors.New("origin and destination are required")
	}
	return nil
}

// RouteResponse model info
//
//	@Description	satu trayek angkutan umum, geometrinya di-encode sebagai google polyline
type RouteResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Status   string `json:"status"`
	Polyline string `json:"polyline"`
}

func NewRouteResponse(r datastructure.Route) RouteResponse {
	return RouteResponse{
		ID:       string(r.ID),
		Name:     r.Name,
		Color:    r.Color,
		Status:   string(r.Status),
		Polyline: r.RenderPolyline(),
	}
}

// FareResponse model info
//
//	@Description	satu leg perjalanan di satu trayek. boundary adalah titik turun
type FareResponse struct {
	Route    RouteResponse            `json:"route"`
	Boundary datastructure.Coordinate `json:"boundary"`
	Distance float64                  `json:"distance"`
}

type ItineraryResponse struct {
	Path          []string       `json:"path"`
	Fares         []FareResponse `json:"fares"`
	TotalDistance float64        `json:"total_distance"`
}

// PathsResponse model info
//
//	@Description	response body pencarian rute. found=false dengan status NoPathFound kalau tidak ada rute dalam batas transit
type PathsResponse struct {
	Found       bool                `json:"found"`
	Status      string              `json:"status"`
	Itineraries []ItineraryResponse `json:"itineraries"`
}

func NewPathsResponse(its []datastructure.Itinerary) *PathsResponse {
	res := &PathsResponse{
		Found:       len(its) > 0,
		Status:      StatusOK,
		Itineraries: make([]ItineraryResponse, 0, len(its)),
	}
	if !res.Found {
		res.Status = StatusNoPathFound
	}
	for _, it := range its {
		path := make([]string, 0, it.Path.Len())
		for _, id := range it.Path.IDs() {
			path = append(path, string(id))
		}
		fares := make([]FareResponse, 0, len(it.Fares))
		for _, f := range it.Fares {
			fares = append(fares, FareResponse{
				Route:    NewRouteResponse(f.Route),
				Boundary: f.Boundary,
				Distance: util.RoundFloat(f.Distance, 2),
			})
		}
		res.Itineraries = append(res.Itineraries, ItineraryResponse{
			Path:          path,
			Fares:         fares,
			TotalDistance: util.RoundFloat(it.TotalDistance(), 2),
		})
	}
	return res
}

// resolvePaths
//
//	@Summary		cari maksimal 2 kombinasi trayek dari origin ke destination beserta jarak tiap leg.
//	@Description	cari maksimal 2 kombinasi trayek dari origin ke destination (maksimal 10 kali transit) beserta titik transit dan jarak tiap leg dalam meter.
//	@Tags			routes
//	@Param			body	body	PathsRequest	true	"request body pencarian rute"
//	@Accept			application/json
//	@Produce		application/json
//	@Router			/routes/paths [post]
//	@Success		200	{object}	PathsResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		422	{object}	ErrResponse
//	@Failure		503	{object}	ErrResponse
//	@Failure		504	{object}	ErrResponse
func (h *RouteHandler) resolvePaths(w http.ResponseWriter, r *http.Request) {
	data := &PathsRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validate(w, r, data) {
		return
	}

	its, err := h.svc.ResolvePaths(r.Context(), data.Origin.coordinate(), data.Destination.coordinate(), data.Radius)
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewPathsResponse(its))
}

// RoutesResponse model info
//
//	@Description	daftar trayek
type RoutesResponse struct {
	Routes []RouteResponse `json:"routes"`
}

func NewRoutesResponse(routes []datastructure.Route) *RoutesResponse {
	res := &RoutesResponse{Routes: make([]RouteResponse, 0, len(routes))}
	for _, rt := range routes {
		res.Routes = append(res.Routes, NewRouteResponse(rt))
	}
	return res
}

// nearestRoutes
//
//	@Summary		trayek yang lewat dekat origin dan destination sekaligus.
//	@Tags			routes
//	@Param			body	body	PathsRequest	true	"request body origin dan destination"
//	@Accept			application/json
//	@Produce		application/json
//	@Router			/routes/nearest [post]
//	@Success		200	{object}	RoutesResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		503	{object}	ErrResponse
func (h *RouteHandler) nearestRoutes(w http.ResponseWriter, r *http.Request) {
	data := &PathsRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validate(w, r, data) {
		return
	}

	routes, err := h.svc.NearestRoutes(r.Context(), data.Origin.coordinate(), data.Destination.coordinate(), data.Radius)
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewRoutesResponse(routes))
}

// allRoutes
//
//	@Summary	semua trayek, urut nama.
//	@Tags		routes
//	@Produce	application/json
//	@Router		/routes [get]
//	@Success	200	{object}	RoutesResponse
//	@Failure	503	{object}	ErrResponse
func (h *RouteHandler) allRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.svc.AllRoutes(r.Context())
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewRoutesResponse(routes))
}

// getRoute
//
//	@Summary	satu trayek berdasarkan id.
//	@Tags		routes
//	@Param		id	path	string	true	"route id (uuid)"
//	@Produce	application/json
//	@Router		/routes/{id} [get]
//	@Success	200	{object}	RouteResponse
//	@Failure	400	{object}	ErrResponse
//	@Failure	404	{object}	ErrResponse
func (h *RouteHandler) getRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("invalid route id %q: %w", id, err)))
		return
	}

	route, err := h.svc.GetRoute(r.Context(), datastructure.RouteID(id))
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewRouteResponse(route))
}

// StoreRouteRequest model info
//
//	@Description	request body untuk menambah trayek baru. id kosong berarti dibuatkan uuid baru
type StoreRouteRequest struct {
	ID     string  `json:"id" validate:"omitempty,uuid"`
	Name   string  `json:"name" validate:"required"`
	Color  string  `json:"color" validate:"omitempty,hexcolor"`
	Status string  `json:"status" validate:"omitempty,oneof=active inactive"`
	Points []Coord `json:"points" validate:"required,min=2,dive"`
}

func (s *StoreRouteRequest) Bind(r *http.Request) error {
	if len(s.Points) < 2 {
		return errors.New("a route needs at least 2 points")
	}
	return nil
}

func (s *StoreRouteRequest) route() (datastructure.Route, error) {
	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}
	points := make([]datastructure.Coordinate, 0, len(s.Points))
	for _, p := range s.Points {
		points = append(points, p.coordinate())
	}
	route, err := datastructure.NewRoute(datastructure.RouteID(id), s.Name, points)
	if err != nil {
		return datastructure.Route{}, err
	}
	if s.Color != "" {
		route.Color = s.Color
	}
	if s.Status != "" {
		route.Status = datastructure.RouteStatus(s.Status)
	}
	return route, nil
}

// storeRoute
//
//	@Summary		tambah trayek baru lalu hitung ulang relasi ketetanggaan antar trayek.
//	@Tags			routes
//	@Param			body	body	StoreRouteRequest	true	"request body trayek baru"
//	@Accept			application/json
//	@Produce		application/json
//	@Router			/routes [post]
//	@Success		201	{object}	RouteResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		500	{object}	ErrResponse
func (h *RouteHandler) storeRoute(w http.ResponseWriter, r *http.Request) {
	data := &StoreRouteRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validate(w, r, data) {
		return
	}

	route, err := data.route()
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}
	stored, err := h.svc.StoreRoute(r.Context(), route)
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, NewRouteResponse(stored))
}

func (h *RouteHandler) health(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// validate writes a 400 with the translated validation errors when data is invalid.
func validate(w http.ResponseWriter, r *http.Request, data interface{}) bool {
	v := validator.New()
	err := v.Struct(data)
	if err == nil {
		return true
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		render.Render(w, r, ErrInvalidRequest(err))
		return false
	}
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(v, trans)
	vv := translateError(invalid, trans)
	render.Render(w, r, ErrValidation(err, vv))
	return false
}

// ErrResponse model info
//
//	@Description	model untuk error response
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText    string   `json:"status"`          // user-level status message
	AppCode       int64    `json:"code,omitempty"`  // application-specific error code
	ErrorText     string   `json:"error,omitempty"` // application-level error message, for debugging
	ErrValidation []string `json:"validation,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrValidation(err error, errV []error) render.Renderer {
	vv := []string{}
	for _, v := range errV {
		vv = append(vv, v.Error())
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: 400,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
		ErrValidation:  vv,
	}
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: 400,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrChi(err error) render.Renderer {
	statusText := ""
	switch getStatusCode(err) {
	case http.StatusNotFound:
		statusText = "Resource not found."
	case http.StatusInternalServerError:
		statusText = "Internal server error."
	case http.StatusConflict:
		statusText = "Resource conflict."
	case http.StatusBadRequest:
		statusText = "Bad request."
	case http.StatusUnprocessableEntity:
		statusText = "GeometryComputationFailed"
	case http.StatusServiceUnavailable:
		statusText = "CatalogUnavailable"
	case http.StatusGatewayTimeout:
		statusText = "Timeout"
	default:
		statusText = "Error."
	}

	errorText := err.Error()
	if getStatusCode(err) == http.StatusInternalServerError {
		errorText = server.MessageInternalServerError
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: getStatusCode(err),
		StatusText:     statusText,
		ErrorText:      errorText,
	}
}

func getStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ierr *server.Error
	if !errors.As(err, &ierr) {
		return http.StatusInternalServerError
	}
	switch ierr.Code() {
	case server.ErrInternalServerError:
		return http.StatusInternalServerError
	case server.ErrNotFound, server.ErrNoPathFound:
		return http.StatusNotFound
	case server.ErrConflict:
		return http.StatusConflict
	case server.ErrBadParamInput:
		return http.StatusBadRequest
	case server.ErrGeometryComputationFailed:
		return http.StatusUnprocessableEntity
	case server.ErrCatalogUnavailable:
		return http.StatusServiceUnavailable
	case server.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func translateError(validatorErrs validator.ValidationErrors, trans ut.Translator) (errs []error) {
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}
