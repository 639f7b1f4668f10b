package graphql

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// schemaSDL is the phonebook API schema
const schemaSDL = `
type Address {
  street: String!
  city: String!
}

type Person {
  name: String!
  phone: String
  address: Address!
  id: ID!
}

enum YesNo {
  YES
  NO
}

type User {
  username: String!
  friends: [Person!]!
  id: ID!
}

type Token {
  value: String!
}

type Query {
  personCount: Int!
  allPersons(phone: YesNo): [Person!]!
  findPerson(name: String!): Person
  me: User
}

type Mutation {
  addPerson(
    name: String!
    phone: String
    street: String!
    city: String!
  ): Person
  editNumber(
    name: String!
    phone: String!
  ): Person
  createUser(
    username: String!
    password: String!
  ): User
  login(
    username: String!
    password: String!
  ): Token
  addAsFriend(
    name: String!
  ): Person
}

type Subscription {
  personAdded: Person!
}
`

// schema is the parsed schema all incoming operations are validated against
var schema = gqlparser.MustLoadSchema(&ast.Source{
	Name:  "phonebook.graphql",
	Input: schemaSDL,
})
