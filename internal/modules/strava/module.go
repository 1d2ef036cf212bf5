// Package strava exposes the Strava v3 API as MCP tools: connection checks,
// activity listings with date-range pagination, and athlete profile access.
package strava

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"stravist/server/internal/modules"
	"stravist/server/pkg/stravaapi"
)

const stravaVersion = "v3"

// defaultRecentLimit matches the Strava default page size for recent listings.
const defaultRecentLimit = 10

// rangePageLimit is the single-page limit for date-range queries.
const rangePageLimit = 30

// StravaModule implements the Module interface for the Strava API.
// The API client is injected at construction; a nil client means the server
// was started without credentials, and every tool reports that before
// touching the network.
type StravaModule struct {
	client *stravaapi.Client
}

// New creates a StravaModule backed by the given client. client may be nil.
func New(client *stravaapi.Client) *StravaModule {
	return &StravaModule{client: client}
}

// Name returns the module name
func (m *StravaModule) Name() string {
	return "strava"
}

// Description returns the module description
func (m *StravaModule) Description() string {
	return "Strava API - Athlete profile and activity data with date-range queries and type filtering"
}

// APIVersion returns the Strava API version
func (m *StravaModule) APIVersion() string {
	return stravaVersion
}

// Tools returns all available tools
func (m *StravaModule) Tools() []modules.Tool {
	return toolDefinitions
}

// ExecuteTool executes a tool by name and returns JSON response
func (m *StravaModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	if m.client == nil {
		return "", errors.Wrap(modules.ErrNotInitialized, "strava")
	}

	switch name {
	case "test_connection":
		return m.testConnection(ctx)
	case "get_recent_activities":
		return m.getRecentActivities(ctx, params)
	case "get_activities_by_date_range":
		return m.getActivitiesByDateRange(ctx, params)
	case "get_all_activities_in_year":
		return m.getAllActivitiesInYear(ctx, params)
	case "get_available_activity_types":
		return m.getAvailableActivityTypes(ctx)
	case "get_athlete_profile":
		return m.getAthleteProfile(ctx)
	case "get_activity_details":
		return m.getActivityDetails(ctx, params)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ToCompact converts JSON result to compact format.
// Implements modules.CompactConverter interface.
func (m *StravaModule) ToCompact(toolName string, jsonResult string) string {
	return formatCompact(toolName, jsonResult)
}

// Resources returns all available resources
func (m *StravaModule) Resources() []modules.Resource {
	return []modules.Resource{
		{
			URI:         "strava://athlete",
			Name:        "Athlete Profile",
			Description: "Profile of the authenticated Strava athlete",
			MimeType:    "application/json",
		},
	}
}

// ReadResource reads a resource by URI
func (m *StravaModule) ReadResource(ctx context.Context, uri string) (string, error) {
	if uri != "strava://athlete" {
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
	if m.client == nil {
		return "", errors.Wrap(modules.ErrNotInitialized, "strava")
	}
	raw, err := m.client.GetAthlete(ctx)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// =============================================================================
// Tool Definitions
// =============================================================================

var toolDefinitions = []modules.Tool{
	{
		Name:        "test_connection",
		Description: "Verify Strava API connectivity and credentials by fetching the authenticated athlete.",
		InputSchema: modules.InputSchema{
			Type:       "object",
			Properties: map[string]modules.Property{},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "get_recent_activities",
		Description: "Get the most recent activities of the authenticated athlete.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"limit": {Type: "number", Description: "Maximum number of activities to return (default: 10)"},
			},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "get_activities_by_date_range",
		Description: "Get activities between two dates (inclusive), optionally filtered by activity type.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"start_date":    {Type: "string", Description: "Start date in YYYY-MM-DD format"},
				"end_date":      {Type: "string", Description: "End date in YYYY-MM-DD format (inclusive)"},
				"activity_type": {Type: "string", Description: "Activity type filter, e.g. Run, Ride, Swim (optional)"},
				"limit":         {Type: "number", Description: "Maximum number of activities to return (default: 30)"},
			},
			Required: []string{"start_date", "end_date"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "get_all_activities_in_year",
		Description: "Get all activities in a calendar year, walking every page (up to 10 pages of 100), optionally filtered by activity type.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"year":          {Type: "number", Description: "Calendar year, e.g. 2024"},
				"activity_type": {Type: "string", Description: "Activity type filter, e.g. Run, Ride, Swim (optional)"},
			},
			Required: []string{"year"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "get_available_activity_types",
		Description: "List the distinct activity types found in the athlete's recent activities (200-activity sample).",
		InputSchema: modules.InputSchema{
			Type:       "object",
			Properties: map[string]modules.Property{},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "get_athlete_profile",
		Description: "Get the authenticated athlete's profile.",
		InputSchema: modules.InputSchema{
			Type:       "object",
			Properties: map[string]modules.Property{},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "get_activity_details",
		Description: "Get the full detail record of a single activity.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"activity_id": {Type: "string", Description: "Activity ID"},
			},
			Required: []string{"activity_id"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
}

// =============================================================================
// Tool Handlers
// =============================================================================

func (m *StravaModule) testConnection(ctx context.Context) (string, error) {
	raw, err := m.client.GetAthlete(ctx)
	if err != nil {
		return "", err
	}
	first := rawString(raw, "firstname")
	last := rawString(raw, "lastname")
	name := first
	if last != "" {
		if name != "" {
			name += " "
		}
		name += last
	}
	return modules.ToJSON(map[string]any{
		"success": true,
		"message": fmt.Sprintf("Successfully connected to Strava as %s", name),
	})
}

func (m *StravaModule) getRecentActivities(ctx context.Context, params map[string]any) (string, error) {
	limit := modules.IntParam(params, "limit", defaultRecentLimit)
	activities, err := m.client.ListActivities(ctx, stravaapi.ListActivitiesParams{PerPage: limit})
	if err != nil {
		return "", err
	}
	return modules.ToJSON(activities)
}

func (m *StravaModule) getActivitiesByDateRange(ctx context.Context, params map[string]any) (string, error) {
	startDate := modules.StringParam(params, "start_date")
	endDate := modules.StringParam(params, "end_date")
	activityType, _ := params["activity_type"].(string)
	limit := modules.IntParam(params, "limit", rangePageLimit)

	activities, err := m.client.ListActivitiesInRange(ctx, startDate, endDate, limit, activityType)
	if err != nil {
		return "", err
	}
	return modules.ToJSON(activities)
}

func (m *StravaModule) getAllActivitiesInYear(ctx context.Context, params map[string]any) (string, error) {
	year := modules.IntParam(params, "year", 0)
	if year < 1900 || year > 2200 {
		return "", fmt.Errorf("invalid year: %d", year)
	}
	activityType, _ := params["activity_type"].(string)

	startDate := fmt.Sprintf("%d-01-01", year)
	endDate := fmt.Sprintf("%d-12-31", year)
	activities, err := m.client.ListAllActivitiesInRange(ctx, startDate, endDate, activityType, stravaapi.DefaultMaxPages)
	if err != nil {
		return "", err
	}
	return modules.ToJSON(activities)
}

func (m *StravaModule) getAvailableActivityTypes(ctx context.Context) (string, error) {
	types, err := m.client.ListActivityTypes(ctx)
	if err != nil {
		return "", err
	}
	return modules.ToJSON(types)
}

func (m *StravaModule) getAthleteProfile(ctx context.Context) (string, error) {
	raw, err := m.client.GetAthlete(ctx)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (m *StravaModule) getActivityDetails(ctx context.Context, params map[string]any) (string, error) {
	activityID := modules.StringParam(params, "activity_id")
	raw, err := m.client.GetActivity(ctx, activityID)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// =============================================================================
// Helpers
// =============================================================================

// rawString scans an opaque JSON object for a top-level string field.
func rawString(raw jx.Raw, key string) string {
	var val string
	d := jx.DecodeBytes(raw)
	_ = d.Obj(func(d *jx.Decoder, k string) error {
		if k != key {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		val = s
		return nil
	})
	return val
}
