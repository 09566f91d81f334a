package loader

// The document structs mirror schema.cue and are filled by cue.Value.Decode
// after the document has been unified with #Patch.

type document struct {
	Time      timeDoc                     `json:"time"`
	Blocks    []blockDoc                  `json:"blocks"`
	Edges     []edgeDoc                   `json:"edges"`
	Exprs     []exprDoc                   `json:"exprs"`
	Instances []instanceDoc               `json:"instances"`
	Outputs   map[string]map[string]int32 `json:"outputs"`
	Signals   []slotDoc                   `json:"signals"`
	Events    []slotDoc                   `json:"events"`
	States    []stateDoc                  `json:"states"`
	Strided   []stridedDoc                `json:"strided"`
}

type timeDoc struct {
	Kind       string  `json:"kind"`
	DurationMs float64 `json:"durationMs"`
	PeriodAMs  float64 `json:"periodAMs"`
	PeriodBMs  float64 `json:"periodBMs"`
}

type blockDoc struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Capability string            `json:"capability"`
	Params     map[string]string `json:"params"`
}

type portDoc struct {
	Block string `json:"block"`
	Port  string `json:"port"`
}

type edgeDoc struct {
	From portDoc `json:"from"`
	To   portDoc `json:"to"`
}

type typeDoc struct {
	Payload     string `json:"payload"`
	Cardinality string `json:"cardinality"`
	Instance    string `json:"instance"`
	Unit        string `json:"unit"`
	Temporality string `json:"temporality"`
}

type exprDoc struct {
	Kind          string    `json:"kind"`
	Block         string    `json:"block"`
	Type          *typeDoc  `json:"type"`
	Value         []float64 `json:"value"`
	Read          string    `json:"read"`
	Channel       string    `json:"channel"`
	State         string    `json:"state"`
	Topology      string    `json:"topology"`
	Params        []int32   `json:"params"`
	ControlPoints *int32    `json:"controlPoints"`
	Event         *int32    `json:"event"`
	Trigger       string    `json:"trigger"`
	Source        *int32    `json:"source"`
	Threshold     float64   `json:"threshold"`
	Intrinsic     string    `json:"intrinsic"`
	Op            string    `json:"op"`
	Fn            string    `json:"fn"`
	Args          []int32   `json:"args"`
	Signals       []int32   `json:"signals"`
	Reducer       string    `json:"reducer"`
}

type instanceDoc struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	Shape *int32 `json:"shape"`
}

type slotDoc struct {
	Expr  int32  `json:"expr"`
	Block string `json:"block"`
}

type stateDoc struct {
	ID      string    `json:"id"`
	Expr    *int32    `json:"expr"`
	Initial []float64 `json:"initial"`
	Block   string    `json:"block"`
}

type stridedDoc struct {
	Exprs []int32  `json:"exprs"`
	Block string   `json:"block"`
	Type  *typeDoc `json:"type"`
}
