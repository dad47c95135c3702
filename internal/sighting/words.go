package sighting

// Word lists are fixed for the life of the process and must never be modified.

var speciesPrefixes = [...]string{"Blue", "Greater", "Lesser Spotted", "Common"}

var speciesSuffixes = [...]string{"Finch", "Tit", "Albatross", "Gull"}

var titles = [...]string{"Mr", "Ms", "Lord", "Lady", "Baron", "Baroness"}

// Most popular given names of the last century (SSA).
var firstNames = [...]string{
	"James", "John", "Robert", "Michael", "William", "David", "Richard", "Joseph",
	"Thomas", "Charles", "Christopher", "Daniel", "Matthew", "Anthony", "Donald", "Mark",
	"Paul", "Steven", "Andrew", "Kenneth", "George", "Joshua", "Kevin", "Brian",
	"Edward", "Ronald", "Timothy", "Jason", "Jeffrey", "Ryan", "Jacob", "Gary",
	"Nicholas", "Eric", "Stephen", "Jonathan", "Larry", "Justin", "Scott", "Brandon",
	"Frank", "Benjamin", "Gregory", "Raymond", "Samuel", "Patrick", "Alexander", "Jack",
	"Dennis", "Jerry", "Tyler", "Aaron", "Henry", "Jose", "Douglas", "Peter",
	"Adam", "Nathan", "Zachary", "Walter", "Kyle", "Harold", "Carl", "Jeremy",
	"Gerald", "Keith", "Roger", "Arthur", "Terry", "Lawrence", "Sean", "Christian",
	"Ethan", "Austin", "Joe", "Albert", "Jesse", "Willie", "Billy", "Bryan",
	"Bruce", "Noah", "Jordan", "Dylan", "Ralph", "Roy", "Alan", "Wayne",
	"Eugene", "Juan", "Gabriel", "Louis", "Russell", "Randy", "Vincent", "Philip",
	"Logan", "Bobby", "Harry", "Johnny", "Mary", "Patricia", "Jennifer", "Linda",
	"Elizabeth", "Barbara", "Susan", "Jessica", "Sarah", "Margaret", "Karen", "Nancy",
	"Lisa", "Betty", "Dorothy", "Sandra", "Ashley", "Kimberly", "Donna", "Emily",
	"Carol", "Michelle", "Amanda", "Melissa", "Deborah", "Stephanie", "Rebecca", "Laura",
	"Helen", "Sharon", "Cynthia", "Kathleen", "Amy", "Shirley", "Angela", "Anna",
	"Ruth", "Brenda", "Pamela", "Nicole", "Katherine", "Samantha", "Christine", "Catherine",
	"Virginia", "Debra", "Rachel", "Janet", "Emma", "Carolyn", "Maria", "Heather",
	"Diane", "Julie", "Joyce", "Evelyn", "Joan", "Victoria", "Kelly", "Christina",
	"Lauren", "Frances", "Martha", "Judith", "Cheryl", "Megan", "Andrea", "Olivia",
	"Ann", "Jean", "Alice", "Jacqueline", "Hannah", "Doris", "Kathryn", "Gloria",
	"Teresa", "Sara", "Janice", "Marie", "Julia", "Grace", "Judy", "Theresa",
	"Madison", "Beverly", "Denise", "Marilyn", "Amber", "Danielle", "Rose", "Brittany",
	"Diana", "Abigail", "Natalie", "Jane", "Lori", "Alexis", "Tiffany", "Kayla",
}

// Most frequent historical surnames.
var lastNames = [...]string{
	"Smith", "Jones", "Brown", "Johnson", "Williams", "Miller", "Taylor", "Wilson",
	"Davis", "White", "Clark", "Hall", "Thomas", "Thompson", "Moore", "Hill",
	"Walker", "Anderson", "Wright", "Martin", "Wood", "Allen", "Robinson", "Lewis",
	"Scott", "Young", "Jackson", "Adams", "Tryniski", "Green", "Evans", "King",
	"Baker", "John", "Harris", "Roberts", "Campbell", "James", "Stewart", "Lee",
	"County", "Turner", "Parker", "Cook", "Mc", "Edwards", "Morris", "Mitchell",
	"Bell", "Ward", "Watson", "Morgan", "Davies", "Cooper", "Phillips", "Rogers",
	"Gray", "Hughes", "Harrison", "Carter", "Murphy", "Collins", "Henry", "Foster",
	"Richardson", "Russell", "Hamilton", "Shaw", "Bennett", "Howard", "Reed", "Fisher",
	"Marshall", "May", "Church", "Washington", "Kelly", "Price", "Murray", "William",
	"Palmer", "Stevens", "Cox", "Robertson", "Miss", "Clarke", "Bailey", "George",
	"Nelson", "Mason", "Butler", "Mills", "Hunt", "Island", "Simpson", "Graham",
	"Henderson", "Ross", "Stone", "Porter", "Wallace", "Kennedy", "Gibson", "West",
	"Brooks", "Ellis", "Barnes", "Johnston", "Sullivan", "Wells", "Hart", "Ford",
	"Reynolds", "Alexander", "Co", "Cole", "Fox", "Holmes", "Day", "Chapman",
	"Powell", "Webster", "Long", "Richards", "Grant", "Hunter", "Webb", "Thomson",
	"Wm", "Lincoln", "Gordon", "Wheeler", "Street", "Perry", "Black", "Lane",
	"Gardner", "City", "Lawrence", "Andrews", "Warren", "Spencer", "Rice", "Jenkins",
	"Knight", "Armstrong", "Burns", "Barker", "Dunn", "Reid",
}
