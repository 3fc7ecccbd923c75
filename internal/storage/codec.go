package storage

import (
	"encoding/json"
	"errors"

	"demesim/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeHistories(histories []model.PopulationHistory) ([]byte, error) {
	return json.Marshal(histories)
}

func DecodeHistories(data []byte) ([]model.PopulationHistory, error) {
	var histories []model.PopulationHistory
	if err := json.Unmarshal(data, &histories); err != nil {
		return nil, err
	}
	for _, history := range histories {
		if err := checkVersion(history.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return histories, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
