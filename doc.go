// Package dynamodel maps typed entities onto a single DynamoDB table.
//
// Every entity owns one partition. Besides the item row, the partition holds
// derived rows that the engine maintains on save:
//
//	| $id      | $kt                  | $sk        | row      |
//	| ======== | ==================== | ========== | ======== |
//	| Post:p1  | Post                 | p1         | item     |
//	| Post:p1  | Post$byTitle         | Hello      | index    |
//	| Post:p1  | Post$author@User:u1  | Post:p1    | relation |
//	| Post:p1  | Post#000003          | p1         | version  |
//
// The secondary index is keyed by ($kt, $sk), which allows the following
// queries:
//   - all posts, ordered by id: $kt = "Post"
//   - posts through an index, ordered by its sort value: $kt = "Post$byTitle"
//   - posts of one author: $kt = "Post$author@User:u1"
//
// # Models
//
// Types are declared with a Schema and registered on a Table:
//
//	table := dynamodel.NewTable("entities", dynamodel.NewDynamoStore(client, "entities"))
//	users := table.MustRegister(dynamodel.Schema{Type: "User", Fields: map[string]dynamodel.Field{
//	    "name": {Type: dynamodel.FieldString},
//	}})
//	posts := table.MustRegister(dynamodel.Schema{
//	    Type: "Post",
//	    Fields: map[string]dynamodel.Field{
//	        "title": {Type: dynamodel.FieldString, Versioned: true},
//	    },
//	    Relations: map[string]dynamodel.RelationDef{
//	        "author": {Target: "User", Include: []string{"title"}},
//	    },
//	    Indexes: map[string]dynamodel.IndexDef{
//	        "byTitle": {
//	            Field:     "title",
//	            Include:   []string{"title"},
//	            Search:    &dynamodel.SearchSpec{Steps: []dynamodel.NormalizeStep{dynamodel.Step("ci"), dynamodel.Step("no-accents")}},
//	            Relations: []string{"author"},
//	        },
//	    },
//	    MaxVersions: 10,
//	})
//
// # Saving
//
// Entities track their changes. Save writes only the rows whose content
// changed and reports how many rows it wrote; saving an unchanged entity
// sends nothing.
//
//	post := posts.New()
//	post.MustSet("title", "Hello")
//	_ = post.SetRelation("author", user)
//	n, err := post.Save(ctx)
//
// # Querying
//
// Queries read the secondary index and accept a filter vocabulary that
// includes relation and fuzzy search predicates:
//
//	res, err := posts.Query().
//	    UsingIndex("byTitle").
//	    Filter(dynamodel.RelatedToFilter("author", "u1"), dynamodel.ContainsLike("title", "héllo")).
//	    PageSize(20).
//	    Find(ctx)
//
// Pass res.ContinuationToken to the next query to read the following page.
package dynamodel
