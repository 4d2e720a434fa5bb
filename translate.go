package dynamodel

import (
	"fmt"
	"strings"
)

// translator rewrites a filter written against entity fields into one that
// addresses the stored row of the selected query mode.
type translator struct {
	model    *Model
	project  bool                // paths address the $sf map
	index    *IndexDescriptor    // set when querying an index
	relation *RelationDescriptor // set when querying a relation
}

func (tr translator) rewrite(f Filter) (Filter, error) {
	switch x := f.(type) {
	case nil:
		return nil, nil
	case And:
		fs, err := tr.rewriteAll(x.Filters)
		return And{Filters: fs}, err
	case Or:
		fs, err := tr.rewriteAll(x.Filters)
		return Or{Filters: fs}, err
	case Not:
		inner, err := tr.rewrite(x.Filter)
		return Not{Filter: inner}, err
	case Compare:
		x.Path = tr.path(x.Path)
		return x, nil
	case Between:
		x.Path = tr.path(x.Path)
		return x, nil
	case In:
		x.Path = tr.path(x.Path)
		return x, nil
	case Func:
		x.Path = tr.path(x.Path)
		return x, nil
	case RelatedTo:
		return tr.relatedTo(x)
	case Like:
		return tr.like(x)
	case Search:
		return tr.search(x)
	default:
		return nil, fmt.Errorf("unsupported filter %T", f)
	}
}

func (tr translator) rewriteAll(fs []Filter) ([]Filter, error) {
	out := make([]Filter, len(fs))
	for i, f := range fs {
		r, err := tr.rewrite(f)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// path prefixes paths of projected rows with $sf. Reserved attributes are
// left alone.
func (tr translator) path(p string) string {
	if !tr.project || strings.HasPrefix(p, "$") {
		return p
	}
	return AttributeNameFields + "." + p
}

func (tr translator) relatedTo(x RelatedTo) (Filter, error) {
	if tr.index == nil {
		return nil, fmt.Errorf("%w: relatedTo(%s) requires an index", ErrUnsearchableQuery, x.Relation)
	}
	d, err := tr.model.Relation(x.Relation)
	if err != nil {
		return nil, err
	}
	if !tr.index.Exposes(x.Relation) {
		return nil, fmt.Errorf("%w: index %s does not expose relation %s", ErrInvalidRelation, tr.index.Name, x.Relation)
	}
	if x.ID == "" {
		return nil, fmt.Errorf("%w: relatedTo(%s) without target id", ErrInvalidIdentity, x.Relation)
	}
	keys := tr.model.table.keys
	key := keys.Format(KeySegments{
		Entity:   tr.model.Type(),
		Index:    d.Name,
		Relation: keys.EnsurePrefix(d.Target, x.ID),
	})
	return Func{Name: FuncContains, Path: AttributeNameRelations, Arg: key}, nil
}

func (tr translator) like(x Like) (Filter, error) {
	var normalize Normalizer
	switch {
	case tr.index != nil && tr.index.Searchable():
		normalize = tr.index.Normalize
	case tr.relation != nil && tr.relation.Searchable():
		normalize = tr.relation.Normalize
	default:
		return nil, fmt.Errorf("%w: like(%s) requires a searchable index", ErrUnsearchableQuery, x.Path)
	}
	path := strings.TrimPrefix(x.Path, AttributeNameFields+".")
	path = AttributeNameSearch + "." + path
	value := normalize(x.Value)
	switch x.Mode {
	case LikeBegins:
		return Func{Name: FuncBeginsWith, Path: path, Arg: value}, nil
	case LikeContains:
		return Func{Name: FuncContains, Path: path, Arg: value}, nil
	default:
		return Compare{Path: path, Op: OpEqual, Value: value}, nil
	}
}

// search expands free text into one condition per normalized term: the term
// is contained in any of the row's search fields.
func (tr translator) search(x Search) (Filter, error) {
	var params *searchParams
	switch {
	case tr.index != nil && tr.index.Searchable():
		params = tr.index.search
	case tr.relation != nil && tr.relation.Searchable():
		params = tr.relation.search
	default:
		return nil, fmt.Errorf("%w: search(%q) requires a searchable index", ErrUnsearchableQuery, x.Text)
	}
	terms := strings.Fields(params.normalize(x.Text))
	conds := make([]Filter, 0, len(terms))
	for _, term := range terms {
		alts := make([]Filter, 0, len(params.fields))
		for _, field := range params.fields {
			alts = append(alts, Func{Name: FuncContains, Path: AttributeNameSearch + "." + field, Arg: term})
		}
		conds = append(conds, Or{Filters: alts})
	}
	return And{Filters: conds}, nil
}
