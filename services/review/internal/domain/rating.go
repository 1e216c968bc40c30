package domain

import (
	"math"
	"time"
)

// RatingDistribution counts reviews per overall star level. Counts[0] holds
// one-star reviews and Counts[4] five-star reviews.
type RatingDistribution struct {
	Counts [5]int  `json:"counts"`
	Total  int     `json:"total"`
	Mean   float64 `json:"mean"`
}

// Count returns the number of reviews with the given star rating, or 0 for
// stars outside 1..5.
func (d RatingDistribution) Count(stars int) int {
	if stars < 1 || stars > 5 {
		return 0
	}
	return d.Counts[stars-1]
}

// Percent returns the share of reviews at the given star rating, 0..100.
func (d RatingDistribution) Percent(stars int) float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Count(stars)) * 100 / float64(d.Total)
}

// ChannelRating is the average overall rating for one consultation channel.
type ChannelRating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// DoctorRating is the full aggregate shown on a doctor's profile.
type DoctorRating struct {
	DoctorID           string                                `json:"doctor_id"`
	Distribution       RatingDistribution                    `json:"distribution"`
	AvgWaitTime        float64                               `json:"avg_wait_time"`
	AvgBedsideManner   float64                               `json:"avg_bedside_manner"`
	AvgExplanation     float64                               `json:"avg_explanation"`
	Channels           map[ConsultationChannel]ChannelRating `json:"channels"`
	RecommendationRate float64                               `json:"recommendation_rate"`
	LastUpdated        time.Time                             `json:"last_updated"`
}

// EmptyRating is the aggregate of a doctor with no approved reviews.
func EmptyRating(doctorID string) *DoctorRating {
	return &DoctorRating{
		DoctorID: doctorID,
		Channels: map[ConsultationChannel]ChannelRating{},
	}
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
