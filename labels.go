package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// loadLabels reads the class names in model output order. A .json file
// holds an array of strings, anything else one label per line.
func loadLabels(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	labels := []string{}
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		if err := json.NewDecoder(f).Decode(&labels); err != nil {
			return nil, fmt.Errorf("parse labels %s: %w", filename, err)
		}
	} else {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			labels = append(labels, strings.TrimSpace(scanner.Text()))
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read labels %s: %w", filename, err)
		}
		for len(labels) > 0 && labels[len(labels)-1] == "" {
			labels = labels[:len(labels)-1]
		}
	}

	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels in %s", filename)
	}
	return labels, nil
}

func getLabel(labels []string, class int) string {
	label := "unknown"
	if class >= 0 && class < len(labels) {
		label = labels[class]
	}
	return label
}
