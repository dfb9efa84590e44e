package prediction

import (
	"fmt"
	"math"

	"github.com/emsgrid/dispatchd/core/geo"
	"github.com/emsgrid/dispatchd/core/model"
)

// Features is the aggregate, model-facing representation of a dispatch
// request. It deliberately flattens the resource snapshots into counts so it
// can cross a wire without carrying the full fleet state.
type Features struct {
	DispatchID        string  `json:"dispatch_id"`
	Latitude          float64 `json:"emergency_latitude"`
	Longitude         float64 `json:"emergency_longitude"`
	Severity          int     `json:"severity_level"`
	HourOfDay         int     `json:"hour_of_day"`
	DayOfWeek         int     `json:"day_of_week"`
	IsWeekend         bool    `json:"is_weekend"`
	VehiclesAvailable int     `json:"vehicles_available_count"`
	NearestVehicleKm  float64 `json:"nearest_vehicle_km"`
	CrewAvailable     int     `json:"crew_available_count"`
	CrewSenior        int     `json:"crew_senior_count"`
	CrewJunior        int     `json:"crew_junior_count"`
	NursesAvailable   int     `json:"nurses_available_count"`
	AvgResponseMin    float64 `json:"avg_response_min"`
}

// FromRequest flattens a request into its feature representation.
func FromRequest(req model.DispatchRequest) Features {
	f := Features{
		DispatchID: req.ID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Severity:   req.Severity,
		HourOfDay:  req.Timestamp.Hour(),
		DayOfWeek:  int(req.Timestamp.Weekday()),
		IsWeekend:  req.Timestamp.Weekday() == 0 || req.Timestamp.Weekday() == 6,
	}

	nearest := math.Inf(1)
	var respSum float64
	for _, v := range req.Vehicles {
		if !v.Available() {
			continue
		}
		f.VehiclesAvailable++
		respSum += v.AvgResponseMin
		if d := geo.Distance(req.Latitude, req.Longitude, v.Latitude, v.Longitude); d < nearest {
			nearest = d
		}
	}
	if f.VehiclesAvailable > 0 {
		f.NearestVehicleKm = nearest
		f.AvgResponseMin = respSum / float64(f.VehiclesAvailable)
	}

	for _, c := range req.Crew {
		if !c.Available() {
			continue
		}
		f.CrewAvailable++
		switch c.Tier {
		case model.TierSenior:
			f.CrewSenior++
		default:
			f.CrewJunior++
		}
	}
	for _, n := range req.Nurses {
		if n.Status == model.StatusAvailable {
			f.NursesAvailable++
		}
	}
	return f
}

// ReconstructRequest is the inverse feature mapping used when the original
// request objects were not carried through to the fallback path. The
// resource snapshots are synthesised from the aggregate counts: vehicles are
// placed at the incident coordinates with alternating crew tiers, and the
// crew pool is filled senior-first up to the senior count.
func (f Features) ReconstructRequest() model.DispatchRequest {
	req := model.DispatchRequest{
		ID:        f.DispatchID,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Severity:  f.Severity,
	}

	for i := 1; i <= f.VehiclesAvailable; i++ {
		tier := model.TierJunior
		if i%2 == 0 {
			tier = model.TierSenior
		}
		req.Vehicles = append(req.Vehicles, model.Vehicle{
			ID:             fmt.Sprintf("veh-%d", i),
			Latitude:       f.Latitude,
			Longitude:      f.Longitude,
			Status:         model.StatusAvailable,
			CrewTier:       tier,
			Type:           model.VehicleAdvanced,
			AvgResponseMin: f.AvgResponseMin,
		})
	}
	for i := 1; i <= f.CrewAvailable; i++ {
		tier := model.TierJunior
		if i <= f.CrewSenior {
			tier = model.TierSenior
		}
		req.Crew = append(req.Crew, model.CrewMember{
			ID:     fmt.Sprintf("crew-%d", i),
			Tier:   tier,
			Status: model.StatusAvailable,
		})
	}
	for i := 1; i <= f.NursesAvailable; i++ {
		req.Nurses = append(req.Nurses, model.SupportStaff{
			ID:     fmt.Sprintf("nurse-%d", i),
			Status: model.StatusAvailable,
		})
	}
	return req
}
