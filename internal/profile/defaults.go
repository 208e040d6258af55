package profile

// Default returns the built-in profiles: 0 for the 0.5 dB step die swept to
// 8 GHz, 1 for the 0.25 dB step die swept to 15 GHz.
func Default() []Profile {
	return []Profile{
		{
			ID:          0,
			Name:        "1324PM1",
			StartFreq:   10_000_000,
			StopFreq:    8_000_000_000,
			SourcePower: -5,
			PointCount:  1601,
			Levels: Table{
				{Attenuation: 0.0, Code: 0b000000},
				{Attenuation: 0.5, Code: 0b000001},
				{Attenuation: 1.0, Code: 0b000010},
				{Attenuation: 2.0, Code: 0b000100},
				{Attenuation: 4.0, Code: 0b001000},
				{Attenuation: 8.0, Code: 0b010000},
				{Attenuation: 16.0, Code: 0b100000},
				{Attenuation: 31.5, Code: 0b111111},
			},
		},
		{
			ID:          1,
			Name:        "1324PM2",
			StartFreq:   10_000_000,
			StopFreq:    15_000_000_000,
			SourcePower: -5,
			PointCount:  1601,
			Levels: Table{
				{Attenuation: 0.0, Code: 0b000000},
				{Attenuation: 0.25, Code: 0b000001},
				{Attenuation: 0.5, Code: 0b000010},
				{Attenuation: 1.0, Code: 0b000100},
				{Attenuation: 2.0, Code: 0b001000},
				{Attenuation: 4.0, Code: 0b010000},
				{Attenuation: 8.0, Code: 0b100000},
				{Attenuation: 15.75, Code: 0b111111},
			},
		},
	}
}

// DefaultCatalog returns a catalog of the built-in profiles
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(Default()...)
	if err != nil {
		panic(err) // built-in profiles are always valid
	}
	return c
}
