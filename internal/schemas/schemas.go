// Package schemas declares the structural contracts of every flow, tool and API payload.
// Values here are read-only; callers must not mutate the maps.
package schemas

import (
	"homewise/internal/common/validation"
	"homewise/internal/models"
)

// ISODate is the pattern every date field must match.
const ISODate = `^\d{4}-\d{2}-\d{2}$`

var (
	nonEmpty    = validation.Int(1)
	nonNegative = validation.Float(0)
	isoDate     = ISODate
)

func text(description string) validation.Property {
	return validation.Property{Type: "string", Description: description, MinLength: nonEmpty}
}

func freeText(description string) validation.Property {
	return validation.Property{Type: "string", Description: description}
}

func date(description string) validation.Property {
	return validation.Property{Type: "string", Description: description, Pattern: &isoDate}
}

func historyProperty(description string) validation.Property {
	return validation.Property{
		Type:        "array",
		Description: description,
		Items: &validation.Property{
			Type: "object",
			Properties: map[string]validation.Property{
				"task": text("The maintenance task performed (e.g., Oil Change)."),
				"date": date("The date the task was completed (YYYY-MM-DD)."),
				"cost": {Type: "number", Description: "The cost of the maintenance task.", Minimum: nonNegative},
			},
			Required: []string{"task", "date", "cost"},
		},
	}
}

// PredictiveMaintenanceInput is the request of the predictive maintenance flow.
var PredictiveMaintenanceInput = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"category":           text("The category of the machine (e.g., Vehicle, Kitchen Appliance)."),
		"brand":              text("The brand of the machine (e.g., Toyota, Samsung)."),
		"model":              text("The model of the machine (e.g., Corolla 2020, RF28R7551SR)."),
		"lastMaintenance":    date("The date of the last maintenance (YYYY-MM-DD)."),
		"purchaseDate":       date("The purchase date of the machine (YYYY-MM-DD)."),
		"usageFrequency":     text("How often the machine is used (e.g., Daily, Weekly, Monthly)."),
		"warrantyExpiry":     date("The warranty expiry date of the machine (YYYY-MM-DD)."),
		"maintenanceHistory": historyProperty("History of maintenance tasks performed on the machine."),
	},
	Required: []string{"category", "brand", "model", "lastMaintenance", "purchaseDate", "usageFrequency", "warrantyExpiry"},
}

// PredictiveMaintenanceOutput is what the model must return for a prediction.
var PredictiveMaintenanceOutput = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"taskName":            freeText("The name of the recommended maintenance task."),
		"nextMaintenanceDate": date("The predicted date for the next maintenance (YYYY-MM-DD)."),
		"estimatedCost":       {Type: "number", Description: "The estimated cost for the maintenance task."},
		"urgencyLevel": {
			Type:        "string",
			Description: "The urgency level of the maintenance task.",
			Enum:        models.UrgencyLevels,
		},
	},
	Required: []string{"taskName", "nextMaintenanceDate", "estimatedCost", "urgencyLevel"},
}

// MaintenanceRecommendationsInput is the request of the recommendations flow.
var MaintenanceRecommendationsInput = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"category":            text("The type of machine (e.g., car, fridge, AC)."),
		"brand":               text("The brand of the machine."),
		"model":               text("The model of the machine."),
		"usageFrequency":      text("How often the machine is used (e.g., daily, weekly, monthly)."),
		"lastMaintenanceDate": date("The date of the last maintenance (YYYY-MM-DD)."),
		"purchaseDate":        date("The date the machine was purchased (YYYY-MM-DD)."),
		"maintenanceHistory":  historyProperty("The maintenance history of the machine."),
		"location": freeText("The user's current location (e.g., city, address, or zip code) " +
			"to find nearby service providers."),
	},
	Required: []string{"category", "brand", "model", "usageFrequency", "lastMaintenanceDate", "purchaseDate"},
}

// MaintenanceRecommendationsOutput is what the model must return for recommendations.
var MaintenanceRecommendationsOutput = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"costSavingTips": freeText("AI-powered recommendations for saving costs on maintaining the machine."),
		"recommendedServiceProviders": freeText("Recommended nearby service providers for maintenance. " +
			"If a location is provided, suggestions should be specific to that area."),
		"estimatedRemainingLife":  freeText("Estimated remaining useful life for the machine."),
		"criticalAttentionNeeded": freeText("Highlights if the machine needs critical attention."),
	},
	Required: []string{"costSavingTips", "recommendedServiceProviders", "estimatedRemainingLife", "criticalAttentionNeeded"},
}

// ChatInput is a new user message plus optional prior turns.
var ChatInput = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"message": freeText("The user's message."),
		"history": {
			Type:        "array",
			Description: "The chat history.",
			Items: &validation.Property{
				Type: "object",
				Properties: map[string]validation.Property{
					"role":    {Type: "string", Enum: []string{"user", "model"}},
					"content": freeText("The text of the turn."),
				},
				Required: []string{"role", "content"},
			},
		},
	},
	Required: []string{"message"},
}

// ChatOutput is the reply shape returned to callers.
var ChatOutput = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"response": freeText("The AI's response message."),
	},
	Required: []string{"response"},
}

// GeolocationInput is the argument shape of the getGeolocation tool.
var GeolocationInput = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"address": freeText("The address, city, or zip code to geocode."),
	},
	Required: []string{"address"},
}

// GeolocationOutput is the result shape of the getGeolocation tool.
var GeolocationOutput = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"lat": {Type: "number", Description: "The latitude."},
		"lng": {Type: "number", Description: "The longitude."},
	},
	Required: []string{"lat", "lng"},
}

// Machine is the body of an add-machine request.
var Machine = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"name":            text("Display name of the machine."),
		"category":        {Type: "string", Enum: models.MachineCategories},
		"brand":           text("Brand."),
		"model":           text("Model."),
		"serialNumber":    freeText("Serial number."),
		"purchaseDate":    date("Purchase date (YYYY-MM-DD)."),
		"warrantyExpiry":  date("Warranty expiry date (YYYY-MM-DD)."),
		"lastMaintenance": date("Last maintenance date (YYYY-MM-DD)."),
		"usageFrequency":  {Type: "string", Enum: models.UsageFrequencies},
		"maintenanceHistory": {
			Type: "array",
			Items: &validation.Property{
				Type: "object",
				Properties: map[string]validation.Property{
					"task":   text("Task performed."),
					"date":   date("Date performed (YYYY-MM-DD)."),
					"cost":   {Type: "number", Minimum: nonNegative},
					"vendor": freeText("Vendor."),
					"notes":  freeText("Notes."),
				},
				Required: []string{"task", "date", "cost"},
			},
		},
		"imageUrl":  freeText("Image URL."),
		"imageHint": freeText("Image hint."),
	},
	Required: []string{"name", "category", "brand", "model", "purchaseDate", "warrantyExpiry", "lastMaintenance", "usageFrequency"},
}

// Reminder is the body of an add-reminder request.
var Reminder = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"machineId":     text("Machine the reminder belongs to."),
		"taskName":      {Type: "string", Description: "Task name.", MinLength: validation.Int(2)},
		"dueDate":       date("Due date (YYYY-MM-DD)."),
		"urgencyLevel":  {Type: "string", Enum: models.UrgencyLevels},
		"estimatedCost": {Type: "number", Minimum: nonNegative},
	},
	Required: []string{"machineId", "taskName", "dueDate", "urgencyLevel"},
}

// MachineRecommendations is the body of a per-machine recommendations request.
var MachineRecommendations = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"location": freeText("Where the user is, for nearby providers."),
	},
}
