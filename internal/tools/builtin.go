// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

// =============================================================================
// BUILT-IN HANDS-FREE TOOLS
// =============================================================================

// Builtin returns the hands-free assistant catalog: messaging, alarms, timers,
// reminders, music, contacts, weather, navigation and location tools.
//
// Tools marked OnDevice have side effects that need no network access.
func Builtin() *Catalog {
	return MustCatalog(builtinSpecs()...)
}

func builtinSpecs() []ToolSpec {
	return []ToolSpec{
		{
			Name:        "send_message",
			Description: "Send a text message or iMessage to a contact",
			OnDevice:    true,
			Parameters: ParamSchema{Params: []Param{
				{Name: "recipient", Type: TypeString, Description: "Name of the contact to send the message to", Required: true},
				{Name: "message", Type: TypeString, Description: "The message content to send", Required: true},
			}},
		},
		{
			Name:        "set_alarm",
			Description: "Set an alarm for a specific time",
			OnDevice:    true,
			Parameters: ParamSchema{Params: []Param{
				{Name: "hour", Type: TypeInteger, Description: "Hour (0-23)", Required: true},
				{Name: "minute", Type: TypeInteger, Description: "Minute (0-59)", Required: true},
			}},
		},
		{
			Name:        "set_timer",
			Description: "Set a countdown timer for a number of minutes",
			OnDevice:    true,
			Parameters: ParamSchema{Params: []Param{
				{Name: "minutes", Type: TypeInteger, Description: "Number of minutes for the timer", Required: true},
			}},
		},
		{
			Name:        "create_reminder",
			Description: "Create a reminder with a title and time",
			OnDevice:    true,
			Parameters: ParamSchema{Params: []Param{
				{Name: "title", Type: TypeString, Description: "Short reminder title", Required: true},
				{Name: "time", Type: TypeString, Description: "Time for the reminder (e.g. 3:00 PM)", Required: true},
			}},
		},
		{
			Name:        "play_music",
			Description: "Play a song, album, or playlist",
			OnDevice:    true,
			Parameters: ParamSchema{Params: []Param{
				{Name: "song", Type: TypeString, Description: "Song, album, or playlist name", Required: true},
			}},
		},
		{
			Name:        "search_contacts",
			Description: "Search for a contact by name",
			OnDevice:    true,
			Parameters: ParamSchema{Params: []Param{
				{Name: "query", Type: TypeString, Description: "Name to search for", Required: true},
			}},
		},
		{
			Name:        "get_weather",
			Description: "Get current weather conditions for a location",
			Parameters: ParamSchema{Params: []Param{
				{Name: "location", Type: TypeString, Description: "City name or address", Required: true},
			}},
		},
		{
			Name:        "get_directions",
			Description: "Get driving or walking directions from one place to another",
			Parameters: ParamSchema{Params: []Param{
				{Name: "origin", Type: TypeString, Description: "Starting location", Required: true},
				{Name: "destination", Type: TypeString, Description: "Destination location", Required: true},
				{Name: "mode", Type: TypeString, Description: "Travel mode: driving, walking, transit"},
			}},
		},
		{
			Name:        "find_nearby",
			Description: "Find nearby places of a given category (restaurants, gas stations, pharmacies, etc.)",
			Parameters: ParamSchema{Params: []Param{
				{Name: "category", Type: TypeString, Description: "Type of place (e.g. coffee shop, gas station, hospital)", Required: true},
				{Name: "location", Type: TypeString, Description: "Center location to search around", Required: true},
			}},
		},
		{
			Name:        "search_along_route",
			Description: "Search for places of a given type along a driving route",
			Parameters: ParamSchema{Params: []Param{
				{Name: "query", Type: TypeString, Description: "What to search for (e.g. gas station, coffee)", Required: true},
				{Name: "origin", Type: TypeString, Description: "Starting point of the route", Required: true},
				{Name: "destination", Type: TypeString, Description: "End point of the route", Required: true},
			}},
		},
		{
			Name: "get_current_location",
			Description: "Get the user's current GPS location and return their address. Use when the user asks " +
				"where they are, what their location is, or requests their current address.",
			OnDevice: true,
			Parameters: ParamSchema{Params: []Param{
				{Name: "format", Type: TypeString, Description: "Output format: 'full' for full address (default) or 'short' for city/neighborhood only"},
			}},
		},
	}
}
