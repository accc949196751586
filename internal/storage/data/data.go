package data

// Models returns every persistence model of the storage engine, in migration
// order.
func Models() []interface{} {
	return []interface{}{
		&BucketPO{},
		&DimensionPO{},
		&FilePO{},
		&FileInstancePO{},
		&FileLocationPO{},
	}
}
