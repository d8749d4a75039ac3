package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Equal reports whether every tracked field of f matches other
func (f CheckInFields) Equal(other CheckInFields) bool {
	return equalPtr(f.Weight, other.Weight) &&
		equalPtr(f.BodyFat, other.BodyFat) &&
		equalPtr(f.SportType, other.SportType) &&
		equalPtr(f.SportMinutes, other.SportMinutes) &&
		equalPtr(f.Breakfast, other.Breakfast) &&
		equalPtr(f.Lunch, other.Lunch) &&
		equalPtr(f.Dinner, other.Dinner) &&
		slices.Equal(f.MealImages, other.MealImages) &&
		equalPtr(f.WaterCups, other.WaterCups) &&
		equalPtr(f.WaterMl, other.WaterMl) &&
		equalPtr(f.SleepHours, other.SleepHours) &&
		equalPtr(f.Mood, other.Mood)
}

// Summary renders the submitted fields as a short human readable line.
// Unset fields are left out.
func (f CheckInFields) Summary() string {
	var parts []string
	if f.Weight != nil {
		parts = append(parts, "weight "+formatFloat(*f.Weight)+" kg")
	}
	if f.BodyFat != nil {
		parts = append(parts, "body fat "+formatFloat(*f.BodyFat)+"%")
	}
	if f.SportType != nil || f.SportMinutes != nil {
		sport := "-"
		if f.SportType != nil && *f.SportType != "" {
			sport = *f.SportType
		}
		minutes := 0
		if f.SportMinutes != nil {
			minutes = *f.SportMinutes
		}
		parts = append(parts, fmt.Sprintf("sport %s %d min", sport, minutes))
	}
	meals := 0
	for _, meal := range []*string{f.Breakfast, f.Lunch, f.Dinner} {
		if meal != nil && strings.TrimSpace(*meal) != "" {
			meals++
		}
	}
	if meals > 0 {
		parts = append(parts, fmt.Sprintf("%d/3 meals logged", meals))
	}
	if f.WaterCups != nil || f.WaterMl != nil {
		water := "water"
		if f.WaterCups != nil {
			water += fmt.Sprintf(" %d cups", *f.WaterCups)
		}
		if f.WaterMl != nil {
			water += fmt.Sprintf(" %d ml", *f.WaterMl)
		}
		parts = append(parts, water)
	}
	if f.SleepHours != nil {
		parts = append(parts, "sleep "+formatFloat(*f.SleepHours)+" h")
	}
	if f.Mood != nil && strings.TrimSpace(*f.Mood) != "" {
		parts = append(parts, "mood "+*f.Mood)
	}
	if len(parts) == 0 {
		return "checked in"
	}
	return strings.Join(parts, " · ")
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
