package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultAdvice = "Check local waste management guidelines"

// material is the disposal guidance attached to a predicted class.
// Price is the estimated resale value per kilogram.
type material struct {
	Advice string  `yaml:"advice" json:"advice"`
	Tip    string  `yaml:"tip" json:"tip,omitempty"`
	Price  float64 `yaml:"price" json:"price"`
}

type materials map[string]material

func defaultMaterials() materials {
	return materials{
		"plastic": {
			Advice: "Recyclable - Check local recycling guidelines",
			Tip:    "Rinse containers before recycling. Remove caps and labels if required.",
			Price:  30.00,
		},
		"paper": {
			Advice: "Recyclable - Should be clean and dry",
			Tip:    "Keep paper dry and clean. Remove any plastic windows from envelopes.",
			Price:  22.50,
		},
		"cardboard": {
			Advice: "Recyclable - Flatten before recycling",
			Tip:    "Flatten boxes to save space. Remove tape and shipping labels.",
			Price:  15.00,
		},
		"metal": {
			Advice: "Recyclable - Rinse before recycling",
			Tip:    "Rinse cans thoroughly. Separate aluminum and steel if required.",
			Price:  75.00,
		},
		"glass": {
			Advice: "Recyclable - Separate by color if required",
			Tip:    "Rinse bottles and jars. Separate by color if your facility requires it.",
			Price:  8.00,
		},
		"battery": {
			Advice: "Hazardous - Dispose at proper collection points",
			Tip:    "Do not dispose in regular trash. Take to designated battery recycling points.",
			Price:  120.00,
		},
		"biological": {
			Advice: "Compostable - Can be composted if organic",
			Tip:    "Compost if possible. Check local guidelines for food waste disposal.",
			Price:  8.00,
		},
		"clothes": {
			Advice: "Donatable - Consider donating if in good condition",
			Tip:    "Donate if in good condition. Otherwise, recycle as textile waste.",
			Price:  45.00,
		},
		"shoes": {
			Advice: "Donatable - Consider donating if wearable",
			Tip:    "Donate wearable pairs. Recycle unwearable shoes as textile waste.",
			Price:  38.00,
		},
		"trash": {
			Advice: "General waste - Dispose in regular trash",
			Tip:    "Dispose in regular waste bin. Consider if any parts can be recycled separately.",
			Price:  0.00,
		},
		"brown-glass": {
			Advice: defaultAdvice,
			Tip:    "Rinse thoroughly. Brown glass is often used for beer bottles.",
			Price:  8.00,
		},
		"green-glass": {
			Advice: defaultAdvice,
			Tip:    "Rinse thoroughly. Green glass is commonly used for wine bottles.",
			Price:  8.00,
		},
		"white-glass": {
			Advice: defaultAdvice,
			Tip:    "Rinse thoroughly. Clear glass has the highest recycling value.",
			Price:  8.00,
		},
	}
}

// loadMaterials returns the built-in table with the entries of the YAML
// file at path layered on top. An empty path keeps the defaults.
func loadMaterials(path string) (materials, error) {
	m := defaultMaterials()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read materials: %w", err)
	}
	overrides := map[string]material{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse materials %s: %w", path, err)
	}
	for name, entry := range overrides {
		if entry.Advice == "" {
			entry.Advice = defaultAdvice
		}
		m[normalizeClass(name)] = entry
	}
	return m, nil
}

// lookup never fails: unknown classes get the generic advice.
func (m materials) lookup(class string) material {
	if entry, ok := m[normalizeClass(class)]; ok {
		return entry
	}
	return material{Advice: defaultAdvice}
}

func normalizeClass(class string) string {
	return strings.ToLower(strings.TrimSpace(class))
}
