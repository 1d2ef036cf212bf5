package strava

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// Compact formatters per tool — pure transformation: (toolName, JSON) → string
// =============================================================================

func formatCompact(toolName, jsonStr string) string {
	switch toolName {
	case "get_recent_activities", "get_activities_by_date_range", "get_all_activities_in_year":
		return activitiesToCSV(jsonStr)
	case "get_available_activity_types":
		return typesToList(jsonStr)
	case "get_athlete_profile":
		return athleteToCompact(jsonStr)
	case "get_activity_details":
		return activityToCompact(jsonStr)
	default:
		return jsonStr
	}
}

// activitiesToCSV: id,name,type,start_date_local,distance_m,moving_time_s,elev_gain_m
func activitiesToCSV(jsonStr string) string {
	var activities []map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &activities); err != nil {
		return jsonStr
	}
	if len(activities) == 0 {
		return "# 0 activities"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %d activities\n", len(activities)))
	sb.WriteString("```csv\nid,name,type,start_date_local,distance_m,moving_time_s,elev_gain_m\n")
	for _, a := range activities {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%s,%d,%s\n",
			int64Val(a, "id"),
			csvEscape(str(a, "name")),
			str(a, "type"),
			str(a, "start_date_local"),
			trimFloat(floatVal(a, "distance")),
			int64Val(a, "moving_time"),
			trimFloat(floatVal(a, "total_elevation_gain")),
		))
	}
	sb.WriteString("```")
	return sb.String()
}

// typesToList: markdown bullet list of activity types
func typesToList(jsonStr string) string {
	var types []string
	if err := json.Unmarshal([]byte(jsonStr), &types); err != nil {
		return jsonStr
	}
	if len(types) == 0 {
		return "# 0 activity types"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %d activity types\n", len(types)))
	for _, t := range types {
		sb.WriteString(fmt.Sprintf("- %s\n", t))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// athleteToCompact: athlete profile summary
func athleteToCompact(jsonStr string) string {
	var a map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &a); err != nil {
		return jsonStr
	}
	var sb strings.Builder
	name := strings.TrimSpace(str(a, "firstname") + " " + str(a, "lastname"))
	sb.WriteString(fmt.Sprintf("# %s\n", name))
	sb.WriteString(fmt.Sprintf("- **ID**: %d\n", int64Val(a, "id")))
	if username := str(a, "username"); username != "" {
		sb.WriteString(fmt.Sprintf("- **Username**: %s\n", username))
	}
	if city := str(a, "city"); city != "" {
		loc := city
		if country := str(a, "country"); country != "" {
			loc += ", " + country
		}
		sb.WriteString(fmt.Sprintf("- **Location**: %s\n", loc))
	}
	if w := floatVal(a, "weight"); w > 0 {
		sb.WriteString(fmt.Sprintf("- **Weight**: %s kg\n", trimFloat(w)))
	}
	if ftp := int64Val(a, "ftp"); ftp > 0 {
		sb.WriteString(fmt.Sprintf("- **FTP**: %d W\n", ftp))
	}
	if created := str(a, "created_at"); created != "" {
		sb.WriteString(fmt.Sprintf("- **Member since**: %s\n", created))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// activityToCompact: single activity detail
func activityToCompact(jsonStr string) string {
	var a map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &a); err != nil {
		return jsonStr
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n", str(a, "name")))
	sb.WriteString(fmt.Sprintf("- **ID**: %d\n", int64Val(a, "id")))
	sb.WriteString(fmt.Sprintf("- **Type**: %s\n", str(a, "type")))
	if start := str(a, "start_date_local"); start != "" {
		sb.WriteString(fmt.Sprintf("- **Start**: %s\n", start))
	}
	if d := floatVal(a, "distance"); d > 0 {
		sb.WriteString(fmt.Sprintf("- **Distance**: %s m\n", trimFloat(d)))
	}
	if mt := int64Val(a, "moving_time"); mt > 0 {
		sb.WriteString(fmt.Sprintf("- **Moving time**: %s\n", durationStr(mt)))
	}
	if e := floatVal(a, "total_elevation_gain"); e > 0 {
		sb.WriteString(fmt.Sprintf("- **Elevation gain**: %s m\n", trimFloat(e)))
	}
	if s := floatVal(a, "average_speed"); s > 0 {
		sb.WriteString(fmt.Sprintf("- **Avg speed**: %s m/s\n", trimFloat(s)))
	}
	if hr := floatVal(a, "average_heartrate"); hr > 0 {
		sb.WriteString(fmt.Sprintf("- **Avg HR**: %s bpm\n", trimFloat(hr)))
	}
	if desc := str(a, "description"); desc != "" {
		sb.WriteString(fmt.Sprintf("\n## Description\n%s\n", desc))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// =============================================================================
// Helpers
// =============================================================================

func str(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

func floatVal(obj map[string]any, key string) float64 {
	if v, ok := obj[key].(float64); ok {
		return v
	}
	return 0
}

func int64Val(obj map[string]any, key string) int64 {
	if v, ok := obj[key].(float64); ok {
		return int64(v)
	}
	return 0
}

// trimFloat renders a float without trailing zeros (5000.0 -> "5000").
func trimFloat(f float64) string {
	s := fmt.Sprintf("%.1f", f)
	s = strings.TrimSuffix(s, ".0")
	return s
}

// durationStr renders seconds as h:mm:ss or m:ss.
func durationStr(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func csvEscape(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, ",\"\n\r") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
