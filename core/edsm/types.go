package edsm

// Body is one star or planet entry from the bodies endpoint.
type Body struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	SubType        string `json:"subType"`
	IsMainStar     bool   `json:"isMainStar"`
	IsLandable     bool   `json:"isLandable"`
	AtmosphereType string `json:"atmosphereType"`
}

// BodiesResponse is the payload of /api-system-v1/bodies. Unknown systems
// come back as an empty object or with a non-100 msgnum.
type BodiesResponse struct {
	ID        int64  `json:"id"`
	ID64      int64  `json:"id64"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	BodyCount int    `json:"bodyCount"`
	Bodies    []Body `json:"bodies"`
	Msgnum    *int   `json:"msgnum"`
}

// Coords is the galactic position returned with showCoordinates=1.
type Coords struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Information is the political block returned with showInformation=1.
type Information struct {
	Allegiance   string `json:"allegiance"`
	Government   string `json:"government"`
	Faction      string `json:"faction"`
	FactionState string `json:"factionState"`
	Population   int64  `json:"population"`
	Security     string `json:"security"`
	Economy      string `json:"economy"`
}

// SystemInfo is the payload of /api-v1/system.
type SystemInfo struct {
	ID            int64        `json:"id"`
	ID64          int64        `json:"id64"`
	Name          string       `json:"name"`
	Coords        *Coords      `json:"coords"`
	Information   *Information `json:"information"`
	RequirePermit bool         `json:"requirePermit"`
	PermitName    string       `json:"permitName"`
	Msgnum        *int         `json:"msgnum"`
}

// System is the combined enrichment result: the body catalogue plus the
// coordinate and political data when the system endpoint had them.
type System struct {
	BodiesResponse

	Coords        *Coords      `json:"coords,omitempty"`
	Information   *Information `json:"information,omitempty"`
	RequirePermit bool         `json:"requirePermit,omitempty"`
	PermitName    string       `json:"permitName,omitempty"`
}

// knownMsgnum is the EDSM "OK" status code; anything else on a response
// means the system is not in their catalogue.
const knownMsgnum = 100

func (r *BodiesResponse) known() bool {
	if r.Msgnum != nil && *r.Msgnum != knownMsgnum {
		return false
	}
	return r.ID != 0 || r.ID64 != 0 || len(r.Bodies) > 0
}

func (r *SystemInfo) known() bool {
	if r.Msgnum != nil && *r.Msgnum != knownMsgnum {
		return false
	}
	return r.ID != 0 || r.ID64 != 0 || r.Name != ""
}
