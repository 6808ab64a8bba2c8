package artifact

// Attribute is one typed value on an artifact. Ids and gammas are zero until
// the attribute is first committed.
type Attribute struct {
	ID         int64
	ArtifactID int64
	Type       string
	GammaID    int64
	ModType    ModType

	value   string
	uri     string
	deleted bool
	dirty   bool
}

// RestoreAttribute rebuilds a committed attribute from storage.
func RestoreAttribute(id, artifactID int64, typ, value, uri string, gammaID int64, mod ModType) *Attribute {
	return &Attribute{
		ID:         id,
		ArtifactID: artifactID,
		Type:       typ,
		GammaID:    gammaID,
		ModType:    mod,
		value:      value,
		uri:        uri,
		deleted:    mod == Deleted,
	}
}

func (a *Attribute) Value() string   { return a.value }
func (a *Attribute) URI() string     { return a.uri }
func (a *Attribute) IsDeleted() bool { return a.deleted }
func (a *Attribute) IsDirty() bool   { return a.dirty }

func (a *Attribute) SetValue(v string) {
	if a.value == v {
		return
	}
	a.value = v
	a.touch()
}

// SetURI points the attribute at externally stored content.
func (a *Attribute) SetURI(uri string) {
	if a.uri == uri {
		return
	}
	a.uri = uri
	a.touch()
}

// IsPhantom reports whether the attribute was added and deleted without ever
// being persisted.
func (a *Attribute) IsPhantom() bool {
	return a.deleted && a.ID == 0
}

func (a *Attribute) Clone() *Attribute {
	c := *a
	return &c
}

func (a *Attribute) delete() {
	if a.deleted {
		return
	}
	a.deleted = true
	a.ModType = Deleted
	a.dirty = true
}

func (a *Attribute) touch() {
	if !a.dirty {
		a.ModType = Modified
	}
	a.dirty = true
}
