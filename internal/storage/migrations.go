package storage

import (
	"encoding/json"
	"fmt"
)

// DefaultMigrations returns the upgrades for payloads written before envelopes existed.
func DefaultMigrations() []Migration {
	return []Migration{
		{Key: KeyDocument, From: 0, Up: upgradeDocumentV0},
		{Key: KeyPendingUpdates, From: 0, Up: upgradePendingV0},
	}
}

// upgradeDocumentV0 renames the old "experience" field and turns plain skill names into skill objects.
func upgradeDocumentV0(data json.RawMessage) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("document is not an object: %w", err)
	}

	if old, ok := doc["experience"]; ok {
		if _, exists := doc["workExperience"]; !exists {
			doc["workExperience"] = old
		}
		delete(doc, "experience")
	}

	if raw, ok := doc["skills"]; ok {
		var names []string
		if err := json.Unmarshal(raw, &names); err == nil {
			skills := make([]map[string]string, 0, len(names))
			for _, n := range names {
				skills = append(skills, map[string]string{"name": n})
			}
			converted, err := json.Marshal(skills)
			if err != nil {
				return nil, err
			}
			doc["skills"] = converted
		}
	}

	if _, ok := doc["personalInfo"]; !ok {
		doc["personalInfo"] = json.RawMessage(`{}`)
	}
	return json.Marshal(doc)
}

// upgradePendingV0 assigns ids to entries written without one.
func upgradePendingV0(data json.RawMessage) (json.RawMessage, error) {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("pending updates are not an array: %w", err)
	}
	for i, e := range entries {
		if _, ok := e["id"]; !ok {
			id, _ := json.Marshal(fmt.Sprintf("legacy-%d", i))
			e["id"] = id
		}
		if _, ok := e["type"]; !ok {
			e["type"] = json.RawMessage(`"cv_update"`)
		}
	}
	return json.Marshal(entries)
}
