// Package feed provides a client for JSON package feeds.
//
// A feed serves one index document per package id:
//
//	GET {base}/packages/{lowercased id}/index.json
//
//	{
//	  "id": "Foo",
//	  "versions": [
//	    {
//	      "version": "1.2.0",
//	      "listed": true,
//	      "groups": [
//	        {"framework": "net8.0", "dependencies": [{"id": "Bar", "range": "[2.0, )"}]},
//	        {"framework": "", "dependencies": []}
//	      ]
//	    }
//	  ]
//	}
//
// An empty framework denotes the framework-independent group. A missing
// "listed" field means listed. Responses are cached through the shared
// [integrations.Client].
//
// [integrations.Client]: github.com/matzehuels/pkggather/pkg/integrations.Client
package feed
