package dto

import "github.com/easybody/auth-gateway/internal/backend"

// NearbyQuery is the query string of the nearby search.
type NearbyQuery struct {
	Lat    float64 `query:"lat" validate:"gte=-90,lte=90"`
	Lon    float64 `query:"lon" validate:"gte=-180,lte=180"`
	Radius float64 `query:"radius" validate:"omitempty,gt=0,lte=100"`
	Type   string  `query:"type" validate:"omitempty,oneof=GYM TRAINER OFFER gym trainer offer"`
	Page   int     `query:"page" validate:"gte=0"`
	Size   int     `query:"size" validate:"omitempty,gte=1,lte=100"`
}

// DefaultRadiusKm applies when the query has no radius.
const DefaultRadiusKm = 10

// Params converts the query to backend parameters.
func (q NearbyQuery) Params() backend.NearbyParams {
	radius := q.Radius
	if radius == 0 {
		radius = DefaultRadiusKm
	}
	return backend.NearbyParams{
		Lat:    q.Lat,
		Lon:    q.Lon,
		Radius: radius,
		Type:   q.Type,
		Page:   q.Page,
		Size:   q.Size,
	}
}
