package storage

import (
	"fmt"
	"strings"
)

// MeasurementPhotoPath builds the object key for a window measurement
// photo: orders/{orderID}/windows/{windowID}/measurements/{fileName}.
// Every segment is validated so caller-supplied values cannot escape the
// order's prefix.
func MeasurementPhotoPath(orderID, windowID, fileName string) (string, error) {
	orderID, err := cleanSegment("orderID", orderID)
	if err != nil {
		return "", err
	}
	windowID, err = cleanSegment("windowID", windowID)
	if err != nil {
		return "", err
	}
	fileName, err = cleanSegment("fileName", fileName)
	if err != nil {
		return "", err
	}
	return "orders/" + orderID + "/windows/" + windowID + "/measurements/" + fileName, nil
}

func cleanSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "", fmt.Errorf("storage: %s is required", name)
	case strings.ContainsAny(value, "/\\"):
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	case strings.Contains(value, ".."):
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
