package metrics

const (
	LabelVersion = "version"
)
