package pathdb

// TypeName returns the string type name of entity id, or ("", false).
func (db *PathDB) TypeName(id EntityID) (string, bool) {
	typeID, ok := db.Entities.GetType(id)
	if !ok {
		return "", false
	}
	return db.Interner.Lookup(typeID)
}

// AttrString returns the string value of entity id's key attribute, or
// ("", false) if unset or key was never interned.
func (db *PathDB) AttrString(id EntityID, key string) (string, bool) {
	keyID, ok := db.Interner.IDOf(key)
	if !ok {
		return "", false
	}
	valID, ok := db.Entities.GetAttr(id, keyID)
	if !ok {
		return "", false
	}
	return db.Interner.Lookup(valID)
}

// RelTypeID returns the interned ID of relType if it has been interned.
func (db *PathDB) RelTypeID(relType string) (StrID, bool) {
	return db.Interner.IDOf(relType)
}

// OutgoingByName is Relations.Outgoing but takes the relation type by name,
// returning nil if the relation type was never interned (i.e. no such edge
// could possibly exist).
func (db *PathDB) OutgoingByName(source EntityID, relType string) []Relation {
	id, ok := db.Interner.IDOf(relType)
	if !ok {
		return nil
	}
	return db.Relations.Outgoing(source, id)
}
