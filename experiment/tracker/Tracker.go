// Package tracker implements Trackers, which record data generated
// while a session runs and save it to disk with encoding/gob
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/autoracer/agent"
	ts "github.com/samuelfneumann/autoracer/timestep"
)

// Tracker keeps track of session data and saves the data once the
// session has finished. Track is called once per host tick with the
// outcome of the tick. The TimeStep is only meaningful when the
// status is agent.StatusStepped.
type Tracker interface {
	Track(status agent.Status, t ts.TimeStep)
	Save() error
}

// save gob encodes data into filename
func save(filename string, data interface{}) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return fmt.Errorf("save: could not encode data: %w", err)
	}
	return file.Close()
}

// LoadData decodes the data saved by a Tracker into data, which must
// be a pointer to the type the Tracker saves
func LoadData(filename string, data interface{}) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("loaddata: could not open data file: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(data); err != nil {
		return fmt.Errorf("loaddata: could not decode data: %w", err)
	}
	return nil
}
