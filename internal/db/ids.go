package db

import "github.com/google/uuid"

// GenerateID returns prefix_<uuidv7>. Version 7 ids sort by creation time.
func GenerateID(prefix string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return prefix + "_" + id.String(), nil
}
