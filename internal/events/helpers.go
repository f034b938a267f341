package events

import (
	"encoding/json"
	"fmt"
)

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}

// SetData stores any JSON-serializable struct in the Data field
func (e *RunEvent) SetData(data interface{}) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert %T: %w", data, err)
	}
	e.Data = dataMap
	return nil
}

// GetSourceFetchedData retrieves SourceFetchedData from the Data field
func (e *RunEvent) GetSourceFetchedData() (*SourceFetchedData, error) {
	var data SourceFetchedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse SourceFetchedData: %w", err)
	}
	return &data, nil
}

// GetItemSkippedData retrieves ItemSkippedData from the Data field
func (e *RunEvent) GetItemSkippedData() (*ItemSkippedData, error) {
	var data ItemSkippedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ItemSkippedData: %w", err)
	}
	return &data, nil
}

// GetDecisionData retrieves DecisionData from the Data field
func (e *RunEvent) GetDecisionData() (*DecisionData, error) {
	var data DecisionData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse DecisionData: %w", err)
	}
	return &data, nil
}

// GetRunCompletedData retrieves RunCompletedData from the Data field
func (e *RunEvent) GetRunCompletedData() (*RunCompletedData, error) {
	var data RunCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse RunCompletedData: %w", err)
	}
	return &data, nil
}

// GetEventCleanupCompletedData retrieves EventCleanupCompletedData from the Data field
func (e *RunEvent) GetEventCleanupCompletedData() (*EventCleanupCompletedData, error) {
	var data EventCleanupCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse EventCleanupCompletedData: %w", err)
	}
	return &data, nil
}
